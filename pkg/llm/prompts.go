package llm

import (
	"fmt"
	"strings"

	"github.com/malbeclabs/datachat/pkg/llm/prompts"
)

// Prompts holds the prompt templates loaded from embedded files.
type Prompts struct {
	System            string
	ClassifyIntent    string
	GenerateSQL       string
	RefineSQL         string
	InterpretResults  string
	AnswerWithContext string
}

func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}
	files := []struct {
		name string
		dst  *string
	}{
		{"SYSTEM.md", &p.System},
		{"CLASSIFY_INTENT.md", &p.ClassifyIntent},
		{"GENERATE_SQL.md", &p.GenerateSQL},
		{"REFINE_SQL.md", &p.RefineSQL},
		{"INTERPRET_RESULTS.md", &p.InterpretResults},
		{"ANSWER_WITH_CONTEXT.md", &p.AnswerWithContext},
	}
	for _, f := range files {
		data, err := prompts.PromptsFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		*f.dst = strings.TrimSpace(string(data))
	}
	return p, nil
}

// render substitutes {{KEY}} placeholders.
func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
