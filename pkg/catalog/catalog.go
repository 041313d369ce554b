// Package catalog holds the static seed data of a chat session: channels,
// their initial rosters, themes and emoji palettes.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Member is a roster entry
type Member struct {
	ID       string `yaml:"id" json:"id"`
	Username string `yaml:"username" json:"username"`
}

// Channel is a pre-defined channel
type Channel struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Welcome     string `yaml:"welcome" json:"-"`
}

// Theme is a selectable colour theme
type Theme struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Class string `yaml:"class" json:"class"`
}

// Catalog is the parsed seed file
type Catalog struct {
	Bot            Member              `yaml:"bot"`
	System         Member              `yaml:"system"`
	Channels       []Channel           `yaml:"channels"`
	Rosters        map[string][]Member `yaml:"rosters"`
	Themes         []Theme             `yaml:"themes"`
	Emojis         []string            `yaml:"emojis"`
	ReactionEmojis []string            `yaml:"reactionEmojis"`
}

// Load parses the embedded catalog
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile parses a catalog from disk. An empty path loads the embedded one.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants the session relies on
func (c *Catalog) Validate() error {
	if c.Bot.ID == "" || c.System.ID == "" {
		return fmt.Errorf("catalog: bot and system users are required")
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("catalog: at least one channel is required")
	}
	if len(c.Themes) == 0 {
		return fmt.Errorf("catalog: at least one theme is required")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.ID == "" || ch.Name == "" {
			return fmt.Errorf("catalog: channel id and name are required")
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("catalog: duplicate channel id %s", ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}
	return nil
}

// Theme returns the theme with the given id
func (c *Catalog) Theme(id string) (Theme, bool) {
	for _, t := range c.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// DefaultTheme is the first theme in the catalog
func (c *Catalog) DefaultTheme() Theme {
	return c.Themes[0]
}
