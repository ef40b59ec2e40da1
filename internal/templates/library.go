// Package templates holds the message template library used to stage
// outbound campaigns. A default library is embedded; an optional YAML file
// overrides templates by name and adds new ones.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultLibrary []byte

// Template is one named message for a channel.
type Template struct {
	Name    string         `yaml:"name" json:"name"`
	Channel domain.Channel `yaml:"channel" json:"channel"`
	Subject string         `yaml:"subject,omitempty" json:"subject,omitempty"`
	Body    string         `yaml:"body" json:"body"`
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Library is an ordered, read-only set of templates.
type Library struct {
	templates []Template
}

// Load parses the embedded library and, when path is non-empty, merges the
// file at path over it.
func Load(path string) (*Library, error) {
	base, err := Parse(defaultLibrary)
	if err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse templates %s: %w", path, err)
	}
	return base.Merge(override), nil
}

// Parse decodes and validates a YAML library.
func Parse(data []byte) (*Library, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(f.Templates))
	for i, t := range f.Templates {
		t.Name = strings.TrimSpace(t.Name)
		t.Body = strings.TrimRight(t.Body, "\n")
		if t.Name == "" {
			return nil, fmt.Errorf("template %d has no name", i)
		}
		if !domain.IsKnownChannel(string(t.Channel)) {
			return nil, fmt.Errorf("template %q: unknown channel %q", t.Name, t.Channel)
		}
		if strings.TrimSpace(t.Body) == "" {
			return nil, fmt.Errorf("template %q has an empty body", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		f.Templates[i] = t
	}
	return &Library{templates: f.Templates}, nil
}

// Merge returns a library where templates of other replace those with the
// same name and new names are appended.
func (l *Library) Merge(other *Library) *Library {
	out := append([]Template(nil), l.templates...)
	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.Name] = i
	}
	for _, t := range other.templates {
		if i, ok := index[t.Name]; ok {
			out[i] = t
			continue
		}
		index[t.Name] = len(out)
		out = append(out, t)
	}
	return &Library{templates: out}
}

func (l *Library) All() []Template {
	return append([]Template(nil), l.templates...)
}

func (l *Library) Get(name string) (Template, bool) {
	for _, t := range l.templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// ForChannel returns the first template of the channel.
func (l *Library) ForChannel(channel domain.Channel) (outbound.Template, bool) {
	for _, t := range l.templates {
		if t.Channel == channel {
			return outbound.Template{Subject: t.Subject, Body: t.Body}, true
		}
	}
	return outbound.Template{}, false
}
