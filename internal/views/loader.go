package views

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in game view names
const (
	ViewDefault = "default"
	ViewAll     = "all"
)

// exampleView is written next to the built-ins by SetupViewsFolder
const exampleView = `name: compact
description: Title and rating only
fields:
  - name: title
    width: 32
    truncate: true
  - name: rating
`

// SetupViewsFolder creates the views directory with an example view.
// Returns true if folder was created, false if it already existed.
func SetupViewsFolder(viewsDir string) (bool, error) {
	if _, err := os.Stat(viewsDir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(viewsDir, 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(viewsDir, "compact.yaml"), []byte(exampleView), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// Loader resolves game view names to layouts. Files in the views directory
// override the built-in views of the same name.
type Loader struct {
	viewsDir string
}

// NewLoader creates a new view loader
func NewLoader(viewsDir string) *Loader {
	return &Loader{viewsDir: viewsDir}
}

// ValidateViewName checks if a view name is safe to use in file paths.
func ValidateViewName(name string) error {
	if name == "" {
		return fmt.Errorf("view name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid view name '%s': contains path separator", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid view name '%s': contains path traversal sequence", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid view name '%s': cannot start with '.'", name)
	}
	return nil
}

// LoadView loads a game view by name. An empty name is the default view.
func (l *Loader) LoadView(name string) (*View, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ViewDefault
	}
	if err := ValidateViewName(name); err != nil {
		return nil, err
	}

	if l.viewsDir != "" {
		path := filepath.Join(l.viewsDir, name+".yaml")
		if _, err := os.Stat(path); err == nil {
			return l.loadFromDisk(name, path)
		}
	}

	switch name {
	case ViewDefault:
		return DefaultGameView(), nil
	case ViewAll:
		return DetailedGameView(), nil
	}
	return nil, fmt.Errorf("view '%s' not found", name)
}

func (l *Loader) loadFromDisk(name, path string) (*View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read view '%s': %w", name, err)
	}

	var view View
	if err := yaml.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to parse view '%s': %w", name, err)
	}
	if view.Name == "" {
		view.Name = name
	}
	if err := validateView(&view); err != nil {
		return nil, fmt.Errorf("invalid view '%s': %w", name, err)
	}
	return &view, nil
}

// ViewInfo contains metadata about a view
type ViewInfo struct {
	Name        string
	Description string
	BuiltIn     bool
}

// ListViews returns the built-in views followed by the custom ones
func (l *Loader) ListViews() ([]ViewInfo, error) {
	infos := []ViewInfo{
		{Name: ViewDefault, Description: "Title, genre, status, rating and category", BuiltIn: true},
		{Name: ViewAll, Description: "Every stored field", BuiltIn: true},
	}
	if l.viewsDir == "" {
		return infos, nil
	}

	entries, err := os.ReadDir(l.viewsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return infos, nil
		}
		return nil, fmt.Errorf("failed to read views directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		view, err := l.LoadView(name)
		if idx := slices.IndexFunc(infos, func(i ViewInfo) bool { return i.Name == name }); idx >= 0 {
			// overridden built-in
			infos[idx].BuiltIn = false
			if err == nil && view.Description != "" {
				infos[idx].Description = view.Description
			}
			continue
		}
		info := ViewInfo{Name: name}
		if err == nil {
			info.Description = view.Description
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func validateView(v *View) error {
	if len(v.Fields) == 0 {
		return fmt.Errorf("view must have at least one field")
	}
	for _, f := range v.Fields {
		if !slices.Contains(GameFields, f.Name) {
			return fmt.Errorf("unknown field: %s", f.Name)
		}
		if f.Width < 0 {
			return fmt.Errorf("negative width for field %s", f.Name)
		}
		switch strings.ToLower(f.Align) {
		case "", "left", "center", "right":
		default:
			return fmt.Errorf("invalid alignment for field %s: %s", f.Name, f.Align)
		}
	}
	return nil
}
