package manifest

import (
	"strings"
	"testing"
)

const validWasm = `
name = "Hello-World"
version = "0.1.0"
author = "octocat"
display-name = "Hello World"
description = "A demo plugin"
repository = "https://github.com/octocat/hello-world"
wasm = "plugin.wasm"
`

func TestParseWasm(t *testing.T) {
	m, err := Parse([]byte(validWasm))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "hello-world" {
		t.Errorf("Name = %s, want lowercased hello-world", m.Name)
	}
	if m.Kind() != KindWasm {
		t.Errorf("Kind = %s, want wasm", m.Kind())
	}
}

func TestParseColorThemes(t *testing.T) {
	doc := `
name = "nord"
version = "1.0.0"
author = "octocat"
display-name = "Nord"
description = "Nord color theme"
color-themes = ["themes/nord.toml", "themes/nord-light.toml"]
`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Kind() != KindColorThemes {
		t.Errorf("Kind = %s, want color-themes", m.Kind())
	}
	if len(m.ColorThemes) != 2 {
		t.Errorf("len(ColorThemes) = %d, want 2", len(m.ColorThemes))
	}
}

func TestParseIconThemes(t *testing.T) {
	doc := `
name = "material-icons"
version = "1.0.0"
author = "octocat"
display-name = "Material Icons"
description = "Material icon theme"
icon-themes = ["theme/icon-theme.toml"]
`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Kind() != KindIconThemes {
		t.Errorf("Kind = %s, want icon-themes", m.Kind())
	}
	if len(m.IconThemes) != 1 || m.IconThemes[0] != "theme/icon-theme.toml" {
		t.Errorf("IconThemes = %v", m.IconThemes)
	}
}

func TestParseRejectsNoKind(t *testing.T) {
	doc := `
name = "docs-only"
version = "0.0.1"
author = "octocat"
display-name = "Docs Only"
description = "No assets"
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected error for manifest with no kind")
	}
	if !strings.Contains(err.Error(), "not a valid plugin") {
		t.Errorf("err = %v, want not a valid plugin", err)
	}
}

func TestParseRejectsEmptyIconThemes(t *testing.T) {
	doc := `
name = "empty"
version = "1.0.0"
author = "octocat"
display-name = "Empty"
description = "Empty theme list"
icon-themes = []
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for empty icon-themes")
	}
}

func TestParseRejectsMultipleKinds(t *testing.T) {
	doc := validWasm + `color-themes = ["themes/a.toml"]` + "\n"
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for wasm + color-themes")
	}
}

func TestParseRejectsEmptyColorThemes(t *testing.T) {
	doc := `
name = "empty"
version = "1.0.0"
author = "octocat"
display-name = "Empty"
description = "Empty theme list"
color-themes = []
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected error for empty color-themes")
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	for _, field := range []string{"name", "version", "author", "display-name", "description"} {
		doc := validWasm
		doc = strings.Replace(doc, field+" = ", "skip = ", 1)
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected error when %s is missing", field)
		}
	}
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	if _, err := Parse([]byte(`name = [unclosed`)); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestIconThemePaths(t *testing.T) {
	doc := `
[icon-theme.ui]
explorer = { path = "icons/explorer.svg" }

[icon-theme.foldername]
src = { path = "icons/folder-src.svg" }

[icon-theme.filename]
"Makefile" = { path = "icons/makefile.svg" }

[icon-theme.extension]
go = { path = "icons/go.svg" }
rs = { path = "icons/rust.svg" }
`
	cfg, err := ParseIconTheme([]byte(doc))
	if err != nil {
		t.Fatalf("ParseIconTheme: %v", err)
	}
	paths := cfg.IconPaths()
	if len(paths) != 5 {
		t.Errorf("len(paths) = %d, want 5", len(paths))
	}
}
