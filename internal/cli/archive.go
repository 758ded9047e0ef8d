package cli

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/plugin-registry/plugin-registry/internal/manifest"
)

const readmeFileName = "README.md"

// readManifest loads and validates volt.toml from dir.
func readManifest(dir string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s doesn't exist", manifest.FileName)
		}
		return nil, err
	}
	return manifest.Parse(data)
}

// collectFiles resolves the slash-relative paths that belong in the plugin
// archive: the manifest, the kind assets, README.md when present, and the
// manifest icon when declared. The same existence rules the server enforces
// are applied here so a bad upload fails before any bytes move.
func collectFiles(dir string, m *manifest.Manifest) ([]string, error) {
	files := []string{manifest.FileName}

	exists := func(rel string) bool {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		return err == nil && info.Mode().IsRegular()
	}

	switch m.Kind() {
	case manifest.KindWasm:
		if !exists(m.Wasm) {
			return nil, fmt.Errorf("wasm %s not found", m.Wasm)
		}
		files = append(files, m.Wasm)

	case manifest.KindColorThemes:
		for _, theme := range m.ColorThemes {
			if !exists(theme) {
				return nil, fmt.Errorf("color theme %s not found", theme)
			}
			files = append(files, theme)
		}

	case manifest.KindIconThemes:
		seen := map[string]bool{}
		for _, configRel := range m.IconThemes {
			if !exists(configRel) {
				return nil, fmt.Errorf("icon theme %s not found", configRel)
			}
			files = append(files, configRel)

			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(configRel)))
			if err != nil {
				return nil, err
			}
			cfg, err := manifest.ParseIconTheme(data)
			if err != nil {
				return nil, fmt.Errorf("icon theme %s format invalid", configRel)
			}

			for _, icon := range cfg.IconPaths() {
				rel := path.Join(path.Dir(configRel), icon)
				if seen[rel] {
					continue
				}
				seen[rel] = true
				if !exists(rel) {
					return nil, fmt.Errorf("icon %s not found", icon)
				}
				files = append(files, rel)
			}
		}
	}

	if exists(readmeFileName) {
		files = append(files, readmeFileName)
	}

	if m.Icon != "" {
		if !exists(m.Icon) {
			return nil, fmt.Errorf("icon not found at the specified path")
		}
		files = append(files, m.Icon)
	}

	return files, nil
}

// buildArchive writes a gzipped tar of the given files into dest. Entry
// names are the slash-relative paths.
func buildArchive(dir, dest string, files []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	for _, rel := range files {
		if err := addFile(tw, dir, rel); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

func addFile(tw *tar.Writer, dir, rel string) error {
	full := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = rel

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
