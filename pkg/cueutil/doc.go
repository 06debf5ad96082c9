// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates documents against embedded CUE schemas.
//
// Two entry points share one flow (compile schema, unify, validate):
//
//	// CUE (or JSON) source text:
//	v, err := cueutil.CompileAndValidate(schema, data, "#Recipe", cueutil.WithFilename("deps.cue"))
//
//	// A document already decoded from YAML or TOML:
//	v, err := cueutil.EncodeAndValidate(schema, doc, "#Recipe", cueutil.WithFilename("deps.yaml"))
//
// Validation errors carry the JSON path of the offending field, e.g.
// "deps.yaml: packages[2].name: conflicting values".
package cueutil
