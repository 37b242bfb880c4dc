package generator

import (
	"context"
	"fmt"
	"strings"

	"bizplan/internal/core"
)

const (
	maxTrends        = 5
	maxCompetitors   = 5
	maxOpportunities = 3

	dataNotAvailable = "Dati non disponibili"
)

// GenerateWithResearch appends the research bundle to prompt and generates
// with the default token limit and no length instruction.
func (g *Generator) GenerateWithResearch(ctx context.Context, prompt string, bundle *core.ResearchBundle, temperature float32) Result {
	return g.Generate(ctx, Request{
		Prompt:      BlendResearch(prompt, bundle),
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
	})
}

// BlendResearch renders at most 5 trends, 5 competitors and 3 opportunities
// under prompt. Empty blocks read "Dati non disponibili".
func BlendResearch(prompt string, bundle *core.ResearchBundle) string {
	if bundle == nil {
		bundle = &core.ResearchBundle{}
	}

	var trends, competitors, opportunities strings.Builder
	for i, t := range bundle.Trends {
		if i == maxTrends {
			break
		}
		fmt.Fprintf(&trends, "- %s\n", t.Description)
	}
	for i, c := range bundle.Competitors {
		if i == maxCompetitors {
			break
		}
		fmt.Fprintf(&competitors, "- %s: %s\n", c.Name, c.Description)
	}
	for i, o := range bundle.Opportunities {
		if i == maxOpportunities {
			break
		}
		fmt.Fprintf(&opportunities, "- %s\n", o.Description)
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nDATI DI RICERCA DI MERCATO:\n")
	if bundle.MarketSize.Description != "" {
		fmt.Fprintf(&b, "Dimensione del mercato: %s\n", bundle.MarketSize.Description)
	}
	writeBlock(&b, "Trend principali", trends.String())
	writeBlock(&b, "Competitor principali", competitors.String())
	writeBlock(&b, "Opportunità", opportunities.String())
	b.WriteString("\nUtilizza questi dati di ricerca per arricchire il contenuto, ma integrandoli in modo naturale nel testo.\n")
	b.WriteString("Non citare esplicitamente \"secondo la ricerca\" o frasi simili.\n")
	return b.String()
}

func writeBlock(b *strings.Builder, title, body string) {
	if body == "" {
		body = dataNotAvailable + "\n"
	}
	fmt.Fprintf(b, "\n%s:\n%s", title, body)
}
