package templates

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// defaultVariant is the catalog key used when a template has no body for a
// specific channel.
const defaultVariant = "default"

//go:embed catalog.yaml
var defaultCatalog []byte

// Template is one renderable message body.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Catalog maps template keys to per-channel bodies.
type Catalog struct {
	templates map[string]map[string]Template
}

type catalogFile struct {
	Templates map[string]map[string]Template `yaml:"templates"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("templates: embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("%w: no templates defined", ErrInvalidCatalog)
	}
	for key, variants := range f.Templates {
		for variant, t := range variants {
			if variant != defaultVariant && !channel.Channel(variant).Valid() {
				return nil, fmt.Errorf("%w: %s has unknown channel %q", ErrInvalidCatalog, key, variant)
			}
			if strings.TrimSpace(t.Body) == "" {
				return nil, fmt.Errorf("%w: %s/%s has an empty body", ErrInvalidCatalog, key, variant)
			}
		}
	}
	return &Catalog{templates: f.Templates}, nil
}

// Lookup returns the template for key on the given channel, falling back to
// the default variant.
func (c *Catalog) Lookup(key string, ch channel.Channel) (Template, error) {
	variants, ok := c.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	if t, ok := variants[string(ch)]; ok {
		return t, nil
	}
	if t, ok := variants[defaultVariant]; ok {
		return t, nil
	}
	return Template{}, fmt.Errorf("%w: %s for %s", ErrTemplateNotFound, key, ch)
}

// Keys returns the template keys in the catalog.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	return keys
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render substitutes {{name}} placeholders from vars.
// Placeholders without a value render as an empty string.
func Render(text string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// Render renders both subject and body of the template.
func (t Template) Render(vars map[string]string) Template {
	return Template{
		Subject: Render(t.Subject, vars),
		Body:    Render(t.Body, vars),
	}
}
