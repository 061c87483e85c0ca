// Package scimnaming derives SCIM endpoint paths from resource type names,
// including pluralization with custom overrides.
package scimnaming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides: make(map[string]string),
	}
}

// Namer converts resource type names to their endpoint paths.
type Namer struct {
	config Config
}

// New creates a Namer with the given configuration
func New(cfg Config) *Namer {
	return &Namer{config: cfg}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig())
}

// Pluralize converts a singular word to its plural form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// EndpointPath converts a resource type name to its endpoint path.
// Example: "User" -> "/Users", "Group" -> "/Groups"
func (n *Namer) EndpointPath(resourceType string) string {
	return "/" + n.Pluralize(strings.TrimPrefix(resourceType, "/"))
}
