package config

import (
	"sort"
	"strings"
)

// CandidateNames returns the candidate model names in declaration order.
func (c *Config) CandidateNames() []string {
	names := make([]string, 0, len(c.CandidateModels))
	for _, p := range c.CandidateModels {
		names = append(names, p.Name)
	}
	return names
}

// Profile returns the candidate profile for a canonical name.
func (c *Config) Profile(name string) (ModelProfile, bool) {
	for _, p := range c.CandidateModels {
		if p.Name == name {
			return p, true
		}
	}
	return ModelProfile{}, false
}

// IsCandidate reports whether name is a canonical candidate model.
func (c *Config) IsCandidate(name string) bool {
	_, ok := c.Profile(name)
	return ok
}

// ResolveModel returns the canonical candidate name for a model name or
// alias, matching case-insensitively.
func (c *Config) ResolveModel(nameOrAlias string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(nameOrAlias))
	if needle == "" {
		return "", false
	}
	for _, p := range c.CandidateModels {
		if p.Name == needle {
			return p.Name, true
		}
		for _, alias := range p.Aliases {
			if alias == needle {
				return p.Name, true
			}
		}
	}
	return "", false
}

// AliasTable returns a sorted-key copy of alias -> canonical name.
func (c *Config) AliasTable() map[string]string {
	table := make(map[string]string)
	for _, p := range c.CandidateModels {
		for _, alias := range p.Aliases {
			table[alias] = p.Name
		}
	}
	return table
}

// HintMarkers returns every token recognized as an explicit model hint,
// one "@name" marker per candidate name and alias, in deterministic order.
func (c *Config) HintMarkers() []string {
	var markers []string
	for _, p := range c.CandidateModels {
		markers = append(markers, "@"+p.Name)
		for _, alias := range p.Aliases {
			markers = append(markers, "@"+alias)
		}
	}
	sort.Strings(markers)
	return markers
}
