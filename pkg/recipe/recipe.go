// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/depforge/depforge/pkg/cueutil"
	"github.com/depforge/depforge/pkg/platform"
)

// Format identifies a recipe document encoding.
type Format string

const (
	// FormatJSON is the legacy recipe encoding (".json" and ".gattai").
	FormatJSON Format = "json"
	// FormatCUE is a CUE document.
	FormatCUE Format = "cue"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
	// FormatTOML is a TOML document.
	FormatTOML Format = "toml"

	schemaPath = "#Recipe"
)

var (
	//go:embed recipe_schema.cue
	recipeSchema []byte

	// ErrUnsupportedFormat is returned for a recipe file extension no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported recipe format")
)

// Recipe is a loaded, validated and platform-folded recipe document.
type Recipe struct {
	Settings Settings
	Packages []*Dependency
	// Filename is the absolute path of the document the recipe was read from.
	Filename string
}

// FormatForPath picks the decoder for a recipe file by extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".gattai":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Load reads the recipe at path for the running platform.
func Load(path string) (*Recipe, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipe path %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe at %s: %w", path, err)
	}
	return LoadBytes(data, abs, platform.Current())
}

// LoadBytes decodes and validates recipe content, folding overrides for goos.
// path selects the decoder and becomes the recipe's Filename.
func LoadBytes(data []byte, path, goos string) (*Recipe, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	doc, err := decode(format, data, path)
	if err != nil {
		return nil, err
	}

	r := &Recipe{Filename: path}

	settings, _ := doc["settings"].(map[string]any)
	r.Settings = Settings(foldPlatform(settings, goos))

	entries, _ := doc["packages"].([]any)
	r.Packages = make([]*Dependency, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: packages[%d]: %w: not an object", path, i, ErrInvalidDependency)
		}
		dep, err := NewDependency(m, goos)
		if err != nil {
			return nil, fmt.Errorf("%s: packages[%d]: %w", path, i, err)
		}
		r.Packages = append(r.Packages, dep)
	}

	return r, nil
}

// Dir returns the directory containing the recipe document.
func (r *Recipe) Dir() string {
	return filepath.Dir(r.Filename)
}

// Names returns the package names in declared order.
func (r *Recipe) Names() []string {
	names := make([]string, len(r.Packages))
	for i, p := range r.Packages {
		names[i] = p.Name
	}
	return names
}

// Package returns the first package named name.
func (r *Recipe) Package(name string) (*Dependency, bool) {
	for _, p := range r.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func decode(format Format, data []byte, path string) (map[string]any, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON, FormatCUE:
		// JSON is a subset of CUE, so both go through the CUE compiler.
		v, err := cueutil.CompileAndValidate(recipeSchema, data, schemaPath, cueutil.WithFilename(path))
		if err != nil {
			return nil, err
		}
		return cueutil.DecodeMap(v, path)
	case FormatYAML:
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML recipe %s: %w", path, err)
		}
		return validateDecoded(doc, path)
	case FormatTOML:
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML recipe %s: %w", path, err)
		}
		return validateDecoded(doc, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func validateDecoded(doc map[string]any, path string) (map[string]any, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	if _, err := cueutil.EncodeAndValidate(recipeSchema, doc, schemaPath, cueutil.WithFilename(path)); err != nil {
		return nil, err
	}
	return doc, nil
}
