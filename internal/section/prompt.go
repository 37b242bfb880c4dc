package section

import (
	"fmt"
	"strings"

	"bizplan/internal/core"
)

const defaultPromptTemplate = `Scrivi SOLO il testo completo e pronto da incollare della sezione '%s' del business plan per l'azienda %s.
NON includere meta-informazioni, intestazioni, ruoli, parentesi graffe, markdown, né alcuna spiegazione tecnica.
Il testo deve essere scorrevole, professionale, coerente e adatto a un documento finale.
Se la sezione è molto lunga, concludi la frase e non troncare a metà.
Se necessario, suddividi in paragrafi ma senza titoli o numerazioni.

Informazioni sull'azienda:
- Nome: %s
- Settore: %s
- Descrizione: %s
- Anno fondazione: %s
- Dipendenti: %s
- Prodotti/Servizi: %s
- Mercato target: %s
- Area geografica: %s
- Obiettivi: %s
- Orizzonte temporale: %s
- Necessità di finanziamento: %s

Scrivi in %s con stile %s.
`

// DefaultPrompt synthesizes the prompt used when the state has no custom
// prompt for the section.
func DefaultPrompt(sectionName string, state core.SectionState) string {
	p := state.BusinessProfile
	horizon := p.TimeHorizon
	if horizon == "" {
		horizon = core.DefaultTimeHorizon
	}
	language, style := state.Language, state.Style
	if language == "" {
		language = core.DefaultLanguage
	}
	if style == "" {
		style = core.DefaultStyle
	}
	return fmt.Sprintf(defaultPromptTemplate,
		sectionName, p.CompanyName,
		p.CompanyName, p.BusinessSector, p.CompanyDescription, p.YearFounded,
		p.NumEmployees, p.MainProducts, p.TargetMarket, p.Area,
		p.PlanObjectives, horizon, p.FundingNeeds,
		language, style)
}

// BuildPrompt assembles the full prompt: custom or default base, document
// context, then family guidance.
func BuildPrompt(sectionName string, state core.SectionState) string {
	var b strings.Builder

	if custom, ok := state.CustomPrompt(sectionName); ok {
		b.WriteString(custom)
	} else {
		b.WriteString(DefaultPrompt(sectionName, state))
	}

	if docs := strings.TrimSpace(state.SectionDocumentsText); docs != "" {
		b.WriteString("\n\nUtilizza queste informazioni come contesto aggiuntivo:\n")
		b.WriteString(docs)
	}

	b.WriteString(Classify(sectionName).Guidance())
	return b.String()
}
