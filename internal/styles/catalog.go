// Package styles provides the StyleCatalog: named artistic styles resolved
// to concrete filter chains. The catalog is an explicit value handed to the
// builder; there is no package-level registry.
package styles

import (
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"montage/internal/timeline"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Style is a named bundle of filters, grading defaults and a transition
// family.
type Style struct {
	Name       string                           `yaml:"-"`
	Filters    []string                         `yaml:"filters"`
	Grading    timeline.ColorGrading            `yaml:"color_grading"`
	Transition string                           `yaml:"transition"`
	Params     map[string]timeline.FilterParams `yaml:"params"`
}

// ArtisticStyle converts the style to its timeline form.
func (s Style) ArtisticStyle() *timeline.ArtisticStyle {
	out := &timeline.ArtisticStyle{
		Name:       s.Name,
		Filters:    slices.Clone(s.Filters),
		Transition: s.Transition,
	}
	if !s.Grading.IsZero() {
		g := s.Grading
		out.Grading = &g
	}
	return out
}

type catalogFile struct {
	Styles map[string]Style `yaml:"styles"`
}

// Catalog holds the known styles. Later loads override earlier ones.
type Catalog struct {
	styles map[string]Style
	logger *slog.Logger
}

// Builtin returns a catalog holding the eight built-in styles.
func Builtin() *Catalog {
	c := &Catalog{styles: make(map[string]Style)}
	if err := c.load(builtinYAML, "builtin"); err != nil {
		panic(fmt.Sprintf("styles: embedded catalog invalid: %v", err))
	}
	return c
}

// Load returns the built-in catalog extended by the YAML file at path. An
// empty path yields the built-ins.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	c := Builtin()
	c.logger = logger
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style catalog: %w", err)
	}
	if err := c.load(data, path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) load(data []byte, origin string) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse style catalog %s: %w", origin, err)
	}
	for name, style := range file.Styles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return fmt.Errorf("style catalog %s: empty style name", origin)
		}
		for _, id := range style.Filters {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("style catalog %s: style %q has an empty filter id", origin, name)
			}
		}
		style.Name = key
		if _, exists := c.styles[key]; exists && c.logger != nil {
			c.logger.Info("style overridden", "style", key, "origin", origin)
		}
		c.styles[key] = style
	}
	return nil
}

// Lookup returns the style registered under name.
func (c *Catalog) Lookup(name string) (Style, bool) {
	if c == nil {
		return Style{}, false
	}
	s, ok := c.styles[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names lists the registered style names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(c.styles))
}

// Resolve fills in an artistic style that carries only a name. Styles that
// already list filters or grading are returned unchanged.
func (c *Catalog) Resolve(style *timeline.ArtisticStyle) (*timeline.ArtisticStyle, Style, bool) {
	if style == nil {
		return nil, Style{}, false
	}
	entry, ok := c.Lookup(style.Name)
	if style.Resolved() {
		return style, entry, ok
	}
	if !ok {
		return style, Style{}, false
	}
	return entry.ArtisticStyle(), entry, true
}
