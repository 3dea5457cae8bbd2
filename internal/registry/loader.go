package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luzdodia/api/internal/model"
)

// catalogFile is the YAML overlay format:
//
//	providers:
//	  - id: groq
//	    name: Groq
//	    models:
//	      - id: llama-3.3-70b-versatile
//	        roles: [text-generation]
//	        pricing: {kind: per_1k_units, rate: 0.00069}
//	defaults:
//	  generate_script: {provider: openai, model: gpt-4o}
type catalogFile struct {
	Providers []Provider                         `yaml:"providers"`
	Defaults  map[model.ActionID]model.Selection `yaml:"defaults"`
}

// Load reads a catalog overlay. Providers in the file replace built-in
// providers with the same id or are appended; defaults override action
// defaults. An empty path returns the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse applies a YAML catalog overlay to the built-in catalog.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	providers := DefaultProviders()
	for _, p := range file.Providers {
		replaced := false
		for i := range providers {
			if providers[i].ID == p.ID {
				providers[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			providers = append(providers, p)
		}
	}

	actions := DefaultActions()
	for id, s := range file.Defaults {
		found := false
		for i := range actions {
			if actions[i].ID == id {
				actions[i].Default = s
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("catalog default for %s: %w", id, ErrUnknownAction)
		}
	}

	return New(providers, actions)
}
