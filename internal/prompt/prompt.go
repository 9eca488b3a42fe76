package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"lexcase/internal/stage"
	"lexcase/internal/textutil"
)

// DefaultMaxSummaryChars approximates an 8000 token budget.
const DefaultMaxSummaryChars = 24000

// Defaults placed into Context by the analyze endpoint.
const (
	DefaultJurisdiction = "فلسطيني"
	DefaultLanguage     = "العربية"
)

// Context describes the case around a prompt.
type Context struct {
	CaseType     string `json:"caseType,omitempty"`
	Complexity   string `json:"complexity,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Language     string `json:"language,omitempty"`
	PartyRole    string `json:"partyRole,omitempty"`
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"add1": func(i int) int { return i + 1 },
	"clip": func(s string, limit int) string { return textutil.Truncate(s, limit, "") },
	"partyRole": func(c *Context) string {
		if c == nil || strings.TrimSpace(c.PartyRole) == "" {
			return "غير محددة"
		}
		return c.PartyRole
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

type promptData struct {
	Stage    stage.Definition
	Text     string
	Previous []string
	Context  *Context
}

// BuildStage renders the prompt for one analysis stage. previous holds the
// outputs of earlier stages in order; ctx may be nil.
func BuildStage(def stage.Definition, text string, previous []string, ctx *Context) (string, error) {
	return render("stage.tmpl", promptData{Stage: def, Text: text, Previous: previous, Context: ctx})
}

// BuildPetition renders the final petition prompt from the stage summaries.
func BuildPetition(text string, summaries []string, ctx *Context) (string, error) {
	return render("petition.tmpl", promptData{Text: text, Previous: summaries, Context: ctx})
}

func render(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// TrimSummaries drops the oldest summaries until their combined length in
// runes is at most maxChars, always keeping the newest one. A non-positive
// maxChars uses DefaultMaxSummaryChars. The input slice is not modified.
func TrimSummaries(summaries []string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxSummaryChars
	}
	total := 0
	for _, s := range summaries {
		total += textutil.RuneLen(s)
	}
	start := 0
	for total > maxChars && len(summaries)-start > 1 {
		total -= textutil.RuneLen(summaries[start])
		start++
	}
	out := make([]string, len(summaries)-start)
	copy(out, summaries[start:])
	return out
}
