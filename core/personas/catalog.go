// Package personas holds the static catalog of debate personas and the
// prompt construction shared by every debate.
package personas

import (
	"fmt"
	"strings"
)

// Definition describes a debate participant. Definitions are read-only once
// placed in a [Catalog].
type Definition struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	VoiceID        string `json:"voiceId,omitempty"`
	PromptTemplate string `json:"prompt"`
}

// ResolutionKind tells how a persona key was resolved.
type ResolutionKind int

const (
	// Known means the key matched a catalog entry.
	Known ResolutionKind = iota
	// Synthesized means the key was unknown and a generic definition was
	// generated from it.
	Synthesized
)

func (k ResolutionKind) String() string {
	switch k {
	case Known:
		return "known"
	case Synthesized:
		return "synthesized"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the tagged result of [Catalog.Resolve].
type Resolution struct {
	Definition
	Kind ResolutionKind
}

func (r Resolution) IsSynthesized() bool { return r.Kind == Synthesized }

// Catalog maps persona keys to definitions. The zero value is an empty
// catalog that synthesizes every persona.
type Catalog struct {
	definitions  []Definition
	byName       map[string]int
	byID         map[string]int
	defaultVoice string
}

type CatalogOption func(*Catalog)

// WithDefaultVoice sets the voice given to synthesized personas and to known
// personas without a voice of their own.
func WithDefaultVoice(voice string) CatalogOption {
	return func(c *Catalog) { c.defaultVoice = voice }
}

// WithVoiceOverrides replaces voices by persona ID. Unknown IDs are ignored
// and empty voices keep the catalog default.
func WithVoiceOverrides(voices map[string]string) CatalogOption {
	return func(c *Catalog) {
		for id, voice := range voices {
			if voice == "" {
				continue
			}
			if i, ok := c.byID[normalize(id)]; ok {
				c.definitions[i].VoiceID = voice
			}
		}
	}
}

func NewCatalog(definitions []Definition, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		definitions: make([]Definition, 0, len(definitions)),
		byName:      make(map[string]int, len(definitions)),
		byID:        make(map[string]int, len(definitions)),
	}

	for _, definition := range definitions {
		c.definitions = append(c.definitions, definition)
		i := len(c.definitions) - 1
		if definition.DisplayName != "" {
			c.byName[normalize(definition.DisplayName)] = i
		}
		if definition.ID != "" {
			c.byID[normalize(definition.ID)] = i
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Resolve never fails: unknown keys resolve to a synthesized definition whose
// display name is the raw key. Display names take precedence over IDs.
func (c *Catalog) Resolve(key string) Resolution {
	if c != nil {
		i, ok := c.byName[normalize(key)]
		if !ok {
			i, ok = c.byID[normalize(key)]
		}
		if ok {
			definition := c.definitions[i]
			if definition.VoiceID == "" {
				definition.VoiceID = c.defaultVoice
			}
			return Resolution{Definition: definition, Kind: Known}
		}
	}

	var voice string
	if c != nil {
		voice = c.defaultVoice
	}

	return Resolution{
		Definition: Definition{
			ID:             key,
			DisplayName:    key,
			VoiceID:        voice,
			PromptTemplate: fmt.Sprintf("You are %s, an AI debater.", key),
		},
		Kind: Synthesized,
	}
}

// MapFrontendIDs translates client persona IDs ("socrates") to display names
// ("AI Socrates"). Unknown IDs pass through unchanged.
func (c *Catalog) MapFrontendIDs(ids []string) []string {
	mapped := make([]string, 0, len(ids))
	for _, id := range ids {
		if c != nil {
			if i, ok := c.byID[normalize(id)]; ok {
				mapped = append(mapped, c.definitions[i].DisplayName)
				continue
			}
		}
		mapped = append(mapped, id)
	}
	return mapped
}

// List returns the catalog definitions in insertion order.
func (c *Catalog) List() []Definition {
	if c == nil {
		return nil
	}

	definitions := make([]Definition, len(c.definitions))
	copy(definitions, c.definitions)
	for i := range definitions {
		if definitions[i].VoiceID == "" {
			definitions[i].VoiceID = c.defaultVoice
		}
	}
	return definitions
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
