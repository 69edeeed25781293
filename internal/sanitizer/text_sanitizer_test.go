package sanitizer

import (
	"regexp"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var (
	scriptTag    = regexp.MustCompile(`(?i)<\s*script`)
	eventHandler = regexp.MustCompile(`(?i)\son[a-z]+\s*=`)
)

// Names never carry angle brackets or runs of whitespace
func TestPropertyName_PlainSingleLine(t *testing.T) {
	s := NewTextSanitizer()

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.StringMatching(`[a-zA-Z0-9 <>/&;"'=\t\n]{0,60}`).Draw(t, "name")
		out := s.Name(in)

		if strings.ContainsAny(out, "<>\n\t") {
			t.Fatalf("markup or line breaks in %q (from %q)", out, in)
		}
		if strings.Contains(out, "  ") || out != strings.TrimSpace(out) {
			t.Fatalf("whitespace not collapsed: %q", out)
		}
	})
}

func TestPropertyDescription_NoScriptsOrHandlers(t *testing.T) {
	s := NewTextSanitizer()
	handlers := []string{"onclick", "onload", "onerror", "onmouseover", "onfocus"}

	rapid.Check(t, func(t *rapid.T) {
		body := rapid.StringMatching(`[a-zA-Z0-9 ]{0,30}`).Draw(t, "body")
		handler := rapid.SampledFrom(handlers).Draw(t, "handler")

		in := "<p " + handler + `="steal()">` + body + "</p><script>steal()</script>"
		out := s.Description(in)

		if scriptTag.MatchString(out) || strings.Contains(out, "steal()") {
			t.Fatalf("script survived: %s", out)
		}
		if eventHandler.MatchString(out) {
			t.Fatalf("event handler survived: %s", out)
		}
	})
}

func TestName(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Mazo Olímpico", "Mazo Olímpico"},
		{"  Fuego   &   Hielo \n", "Fuego & Hielo"},
		{"<b>Dragones</b> del <i>Sur</i>", "Dragones del Sur"},
		{"<script>alert(1)</script>Aggro", "Aggro"},
		{"&lt;script&gt;Aggro", "scriptAggro"},
	}

	for _, tt := range tests {
		if got := s.Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescription(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"formatting kept", "<p>Juega <strong>rápido</strong></p>", "<p>Juega <strong>rápido</strong></p>"},
		{"attributes dropped", `<p class="x" style="color:red">Hola</p>`, "<p>Hola</p>"},
		{"links dropped", `<a href="https://evil.example">clic</a>`, "clic"},
		{"images dropped", `Antes<img src="https://t.example/px.gif">Despues`, "AntesDespues"},
		{"trimmed", "  texto  ", "texto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Description(tt.in); got != tt.want {
				t.Errorf("Description(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
