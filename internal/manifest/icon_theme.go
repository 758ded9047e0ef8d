package manifest

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// IconThemeConfig is the TOML document an icon-theme plugin points at via
// icon-theme.path. Each section maps a key to an icon definition whose path
// must resolve to a file inside the archive.
type IconThemeConfig struct {
	IconTheme IconThemeSections `toml:"icon-theme"`
}

// IconThemeSections groups the four icon maps.
type IconThemeSections struct {
	UI         map[string]IconDefinition `toml:"ui"`
	Foldername map[string]IconDefinition `toml:"foldername"`
	Filename   map[string]IconDefinition `toml:"filename"`
	Extension  map[string]IconDefinition `toml:"extension"`
}

// IconDefinition names the icon file used for a key.
type IconDefinition struct {
	Path string `toml:"path"`
}

// ParseIconTheme decodes an icon theme configuration document.
func ParseIconTheme(data []byte) (*IconThemeConfig, error) {
	var cfg IconThemeConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid icon theme config: %w", err)
	}
	return &cfg, nil
}

// IconPaths returns every icon path referenced by the theme, in section
// order. Duplicates are preserved; the caller deduplicates if needed.
func (c *IconThemeConfig) IconPaths() []string {
	var paths []string
	for _, section := range []map[string]IconDefinition{
		c.IconTheme.UI,
		c.IconTheme.Foldername,
		c.IconTheme.Filename,
		c.IconTheme.Extension,
	} {
		for _, def := range section {
			if def.Path != "" {
				paths = append(paths, def.Path)
			}
		}
	}
	return paths
}
