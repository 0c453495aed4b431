package views

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeView(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create views dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write view %s: %v", name, err)
	}
}

func TestLoaderBuiltInViews(t *testing.T) {
	l := NewLoader("")

	for _, name := range []string{"", "default", "DEFAULT"} {
		v, err := l.LoadView(name)
		if err != nil {
			t.Fatalf("LoadView(%q) failed: %v", name, err)
		}
		if v.Name != DefaultGameView().Name {
			t.Errorf("LoadView(%q) = %s, want the default view", name, v.Name)
		}
	}

	v, err := l.LoadView("all")
	if err != nil {
		t.Fatalf("LoadView(all) failed: %v", err)
	}
	if len(v.Fields) != len(GameFields) {
		t.Errorf("all view should show every field, got %d", len(v.Fields))
	}

	if _, err := l.LoadView("compact"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLoaderCustomView(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	writeView(t, dir, "ratings", `description: Ratings only
fields:
  - name: title
    width: 20
    truncate: true
  - name: rating
    align: right
`)

	v, err := NewLoader(dir).LoadView("Ratings")
	if err != nil {
		t.Fatalf("LoadView failed: %v", err)
	}
	if v.Name != "ratings" || v.Description != "Ratings only" {
		t.Errorf("unexpected view metadata: %+v", v)
	}
	if len(v.Fields) != 2 || v.Fields[0].Width != 20 || !v.Fields[0].Truncate || v.Fields[1].Align != "right" {
		t.Errorf("fields not decoded: %+v", v.Fields)
	}
}

func TestLoaderOverridesBuiltIn(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	writeView(t, dir, "default", "name: mine\nfields:\n  - name: title\n")

	v, err := NewLoader(dir).LoadView("")
	if err != nil {
		t.Fatalf("LoadView failed: %v", err)
	}
	if v.Name != "mine" || len(v.Fields) != 1 {
		t.Errorf("file should override the built-in default: %+v", v)
	}
}

func TestLoaderRejectsInvalidViews(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	writeView(t, dir, "nofields", "name: nofields\n")
	writeView(t, dir, "badfield", "fields:\n  - name: summary\n")
	writeView(t, dir, "badalign", "fields:\n  - name: title\n    align: justify\n")
	writeView(t, dir, "badwidth", "fields:\n  - name: title\n    width: -3\n")
	writeView(t, dir, "badyaml", "fields: [\n")

	tests := map[string]string{
		"nofields": "at least one field",
		"badfield": "unknown field: summary",
		"badalign": "invalid alignment",
		"badwidth": "negative width",
		"badyaml":  "failed to parse",
	}
	l := NewLoader(dir)
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := l.LoadView(name)
			if err == nil || !strings.Contains(err.Error(), want) {
				t.Errorf("expected error containing %q, got %v", want, err)
			}
		})
	}
}

// TestLoaderPathTraversal tests that view names with path traversal sequences are rejected
func TestLoaderPathTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	viewsDir := filepath.Join(tmpDir, "views")
	writeView(t, viewsDir, "ok", "fields:\n  - name: title\n")
	writeView(t, filepath.Join(tmpDir, "secret"), "secret", "fields:\n  - name: title\n")

	l := NewLoader(viewsDir)
	for _, name := range []string{"../secret/secret", "..", ".hidden", `..\secret`, "a/b"} {
		if _, err := l.LoadView(name); err == nil {
			t.Errorf("LoadView(%q) should fail", name)
		}
	}
	if _, err := l.LoadView("ok"); err != nil {
		t.Errorf("valid view rejected: %v", err)
	}
}

func TestSetupViewsFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")

	created, err := SetupViewsFolder(dir)
	if err != nil || !created {
		t.Fatalf("SetupViewsFolder() = %v, %v", created, err)
	}
	if _, err := NewLoader(dir).LoadView("compact"); err != nil {
		t.Errorf("example view should load: %v", err)
	}

	created, err = SetupViewsFolder(dir)
	if err != nil || created {
		t.Errorf("second call should be a no-op, got %v, %v", created, err)
	}
}

func TestListViews(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	writeView(t, dir, "all", "description: My columns\nfields:\n  - name: title\n")
	writeView(t, dir, "ratings", "description: Ratings only\nfields:\n  - name: rating\n")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := NewLoader(dir).ListViews()
	if err != nil {
		t.Fatalf("ListViews failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 views, got %d: %+v", len(infos), infos)
	}
	if !infos[0].BuiltIn || infos[0].Name != "default" {
		t.Errorf("default should stay built-in: %+v", infos[0])
	}
	if infos[1].BuiltIn || infos[1].Description != "My columns" {
		t.Errorf("all should be marked as overridden: %+v", infos[1])
	}
	if infos[2].Name != "ratings" || infos[2].BuiltIn {
		t.Errorf("unexpected custom view: %+v", infos[2])
	}

	infos, err = NewLoader(filepath.Join(dir, "missing")).ListViews()
	if err != nil || len(infos) != 2 {
		t.Errorf("missing folder should list the built-ins only, got %v, %v", infos, err)
	}
}
