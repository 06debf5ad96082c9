// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize is the default maximum document size (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

type (
	parseOptions struct {
		maxFileSize int64
		concrete    bool
		filename    string
	}

	// Option configures validation behavior.
	Option func(*parseOptions)
)

func defaultOptions() parseOptions {
	return parseOptions{
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
		filename:    "<input>",
	}
}

// WithMaxFileSize sets the maximum allowed source size.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) {
		o.maxFileSize = size
	}
}

// WithConcrete sets whether all values must be concrete after unification.
func WithConcrete(concrete bool) Option {
	return func(o *parseOptions) {
		o.concrete = concrete
	}
}

// WithFilename sets the filename used in error messages.
func WithFilename(name string) Option {
	return func(o *parseOptions) {
		if name != "" {
			o.filename = name
		}
	}
}

// CompileAndValidate compiles CUE source (JSON is accepted, being a CUE subset),
// unifies it with the schemaPath definition of schema, and validates the result.
func CompileAndValidate(schema, data []byte, schemaPath string, opts ...Option) (cue.Value, error) {
	options := applyOptions(opts)

	if err := CheckFileSize(data, options.maxFileSize, options.filename); err != nil {
		return cue.Value{}, err
	}

	ctx := cuecontext.New()
	userValue := ctx.CompileBytes(data, cue.Filename(options.filename))
	if userValue.Err() != nil {
		return cue.Value{}, FormatError(userValue.Err(), options.filename)
	}
	return unifyAndValidate(ctx, schema, userValue, schemaPath, options)
}

// EncodeAndValidate encodes a decoded Go document (maps, slices, scalars) as a CUE
// value and validates it against the schemaPath definition of schema.
func EncodeAndValidate(schema []byte, doc any, schemaPath string, opts ...Option) (cue.Value, error) {
	options := applyOptions(opts)

	ctx := cuecontext.New()
	userValue := ctx.Encode(doc)
	if userValue.Err() != nil {
		return cue.Value{}, FormatError(userValue.Err(), options.filename)
	}
	return unifyAndValidate(ctx, schema, userValue, schemaPath, options)
}

// DecodeMap decodes a validated struct value into a generic map.
func DecodeMap(v cue.Value, filename string) (map[string]any, error) {
	var out map[string]any
	if err := v.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return out, nil
}

func applyOptions(opts []Option) parseOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func unifyAndValidate(ctx *cue.Context, schema []byte, userValue cue.Value, schemaPath string, options parseOptions) (cue.Value, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)
	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return cue.Value{}, FormatError(err, options.filename)
	}
	return unified, nil
}
