package interview

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var catalogYAML []byte

// PromptTemplate names a template in the catalog.
type PromptTemplate string

const (
	// QuestionStartTemplate asks for the opening question.
	QuestionStartTemplate PromptTemplate = "question_start"
	// QuestionContinueTemplate asks for an evaluation plus the next question.
	QuestionContinueTemplate PromptTemplate = "question_continue"
	// CritiqueTemplate asks for a structured critique of one answer.
	CritiqueTemplate PromptTemplate = "critique"
	// ReportTemplate asks for the final structured report.
	ReportTemplate PromptTemplate = "report"
)

type roundHint struct {
	Hint      string `yaml:"hint"`
	FromRound int    `yaml:"from_round"`
}

// Catalog is the parsed prompt catalog.
type Catalog struct {
	templates          map[PromptTemplate]*template.Template
	TypeGuidance       map[Type]string           `yaml:"type_guidance"`
	DifficultyGuidance map[Difficulty]string     `yaml:"difficulty_guidance"`
	Templates          map[PromptTemplate]string `yaml:"templates"`
	System             string                    `yaml:"system"`
	RoundHints         []roundHint               `yaml:"round_hints"`
}

//nolint:gochecknoglobals // embedded catalog parsed once
var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(catalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

// MustCatalog returns the embedded catalog and panics if it does not parse.
func MustCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog parses a YAML catalog and compiles its templates.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}

	funcs := template.FuncMap{"join": strings.Join}
	c.templates = make(map[PromptTemplate]*template.Template, len(c.Templates))
	for _, name := range []PromptTemplate{QuestionStartTemplate, QuestionContinueTemplate, CritiqueTemplate, ReportTemplate} {
		body, ok := c.Templates[name]
		if !ok {
			return nil, fmt.Errorf("prompt catalog is missing template %s", name)
		}
		tmpl, err := template.New(string(name)).Funcs(funcs).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		c.templates[name] = tmpl
	}
	return &c, nil
}

// Render renders the named template with data.
func (c *Catalog) Render(name PromptTemplate, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RoundHint returns the adaptive hint for round.
func (c *Catalog) RoundHint(round int) string {
	hint := ""
	for _, h := range c.RoundHints {
		if round >= h.FromRound {
			hint = h.Hint
		}
	}
	return hint
}
