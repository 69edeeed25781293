// Package sanitizer strips markup from user-written deck text before it is
// stored and shown to other players.
package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer cleans user-written deck fields
type TextSanitizer interface {
	// Name returns a single-line plain-text name
	Name(s string) string
	// Description returns text that keeps only basic formatting elements
	Description(s string) string
}

// DefaultTextSanitizer implements TextSanitizer using bluemonday
type DefaultTextSanitizer struct {
	plain *bluemonday.Policy
	rich  *bluemonday.Policy
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// NewTextSanitizer creates a sanitizer with a strict policy for names and a
// formatting-only policy for descriptions
func NewTextSanitizer() *DefaultTextSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements(
		"p", "br",
		"strong", "b", "em", "i", "u", "s",
		"ul", "ol", "li",
	)

	return &DefaultTextSanitizer{
		plain: bluemonday.StrictPolicy(),
		rich:  rich,
	}
}

// Name drops every tag, decodes entities and collapses whitespace. Angle
// brackets decoded from entities are removed so no markup survives.
func (s *DefaultTextSanitizer) Name(name string) string {
	if name == "" {
		return ""
	}

	text := html.UnescapeString(s.plain.Sanitize(name))
	text = angleBrackets.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// Description drops scripts, links, images and attributes
func (s *DefaultTextSanitizer) Description(description string) string {
	if description == "" {
		return ""
	}
	return strings.TrimSpace(s.rich.Sanitize(description))
}
