// SPDX-License-Identifier: MPL-2.0

// Package recipe loads dependency recipes.
//
// A recipe document has a top-level "settings" mapping and an ordered
// "packages" list. Either level may carry platform-keyed override sub-objects
// ("darwin", "win32", "linux", ...) which are folded into the parent mapping for
// the running platform when the recipe is loaded. Documents are accepted as JSON
// (".json", ".gattai"), CUE, YAML or TOML and are validated against the embedded
// recipe_schema.cue before use.
package recipe
