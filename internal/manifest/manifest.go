// Package manifest parses and validates volt.toml, the plugin manifest
// included at the root of every published archive.
package manifest

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the manifest's required location inside the archive.
const FileName = "volt.toml"

// Manifest is the parsed volt.toml. Exactly one of the kind-specific fields
// (Wasm, ColorThemes, IconThemes) must be populated; a manifest declaring
// none of them is not a valid plugin.
type Manifest struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Author      string `toml:"author"`
	DisplayName string `toml:"display-name"`
	Description string `toml:"description"`
	Repository  string `toml:"repository"`
	Icon        string `toml:"icon"`

	Wasm        string   `toml:"wasm"`
	ColorThemes []string `toml:"color-themes"`
	IconThemes  []string `toml:"icon-themes"`
}

// Kind classifies what a plugin ships.
type Kind int

const (
	KindWasm Kind = iota
	KindColorThemes
	KindIconThemes
)

func (k Kind) String() string {
	switch k {
	case KindWasm:
		return "wasm"
	case KindColorThemes:
		return "color-themes"
	default:
		return "icon-themes"
	}
}

// Parse decodes and validates a volt.toml document. The plugin name is
// lowercased here so every later layer sees the canonical form.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid volt.toml: %w", err)
	}

	m.Name = strings.ToLower(strings.TrimSpace(m.Name))

	if err := m.validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("volt.toml: name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("volt.toml: version is required")
	}
	if m.Author == "" {
		return fmt.Errorf("volt.toml: author is required")
	}
	if m.DisplayName == "" {
		return fmt.Errorf("volt.toml: display-name is required")
	}
	if m.Description == "" {
		return fmt.Errorf("volt.toml: description is required")
	}

	populated := 0
	if m.Wasm != "" {
		populated++
	}
	if m.ColorThemes != nil {
		if len(m.ColorThemes) == 0 {
			return fmt.Errorf("volt.toml: color-themes must list at least one theme file")
		}
		populated++
	}
	if m.IconThemes != nil {
		if len(m.IconThemes) == 0 {
			return fmt.Errorf("volt.toml: icon-themes must list at least one theme file")
		}
		populated++
	}
	if populated == 0 {
		return fmt.Errorf("volt.toml: not a valid plugin")
	}
	if populated > 1 {
		return fmt.Errorf("volt.toml: a plugin can ship only one of wasm, color-themes, or icon-themes")
	}

	return nil
}

// Kind reports which kind of plugin the manifest describes. validate
// guarantees exactly one kind is populated on parsed manifests.
func (m *Manifest) Kind() Kind {
	switch {
	case m.Wasm != "":
		return KindWasm
	case len(m.ColorThemes) > 0:
		return KindColorThemes
	default:
		return KindIconThemes
	}
}
