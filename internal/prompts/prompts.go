// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompts holds the prompt templates used by every stage. A Set is
// built once at start-up from the defaults plus an optional YAML override
// file and is read-only afterwards, so it can be shared across goroutines.
package prompts

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"
)

// Name identifies a template in a Set.
type Name string

const (
	PlannerSystem       Name = "planner_system"
	PlannerUser         Name = "planner_user"
	ResearchSystem      Name = "research_system"
	ResearchUser        Name = "research_user"
	WriterSystem        Name = "writer_system"
	WriterUser          Name = "writer_user"
	DocumentSummary     Name = "document_summary"
	DocumentGenuineness Name = "document_genuineness"
	DocumentAnswer      Name = "document_answer"
)

// Set is an immutable collection of parsed templates.
type Set struct {
	tmpl map[Name]*template.Template
}

// Default returns the built-in templates. It panics only if a built-in
// template fails to parse, which the package tests rule out.
func Default() *Set {
	s, err := build(nil)
	if err != nil {
		panic(err)
	}
	return s
}

// Load returns the defaults with any templates in the YAML file at path
// replacing them. The file is a mapping of template name to text. An
// empty path returns the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return build(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file %s: %w", path, err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing prompts file %s: %w", path, err)
	}
	return build(overrides)
}

func build(overrides map[string]string) (*Set, error) {
	texts := make(map[Name]string, len(defaults))
	for n, t := range defaults {
		texts[n] = t
	}
	for k, v := range overrides {
		n := Name(k)
		if _, ok := defaults[n]; !ok {
			return nil, fmt.Errorf("unknown prompt %q (known: %s)", k, strings.Join(knownNames(), ", "))
		}
		texts[n] = v
	}

	s := &Set{tmpl: make(map[Name]*template.Template, len(texts))}
	for n, text := range texts {
		t, err := template.New(string(n)).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt %s: %w", n, err)
		}
		s.tmpl[n] = t
	}
	return s, nil
}

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

// Render executes the named template with data.
func (s *Set) Render(name Name, data any) (string, error) {
	t, ok := s.tmpl[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func knownNames() []string {
	names := make([]string, 0, len(defaults))
	for n := range defaults {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}
