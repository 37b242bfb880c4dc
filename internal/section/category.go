package section

import "strings"

// Category is the family a section name belongs to.
type Category int

const (
	CategoryUncategorized Category = iota
	CategoryMarketAnalysis
	CategoryCompetitiveAnalysis
	CategoryFinancialPlan
)

var categoryNames = map[Category]string{
	CategoryUncategorized:       "uncategorized",
	CategoryMarketAnalysis:      "market_analysis",
	CategoryCompetitiveAnalysis: "competitive_analysis",
	CategoryFinancialPlan:       "financial_plan",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryUncategorized]
}

// ResearchRelevant reports whether market research improves this family.
func (c Category) ResearchRelevant() bool {
	return c == CategoryMarketAnalysis || c == CategoryCompetitiveAnalysis
}

// Section names recognized per family, lower case.
var categoryAliases = []struct {
	category Category
	names    []string
}{
	{CategoryMarketAnalysis, []string{"analisi di mercato", "analisi del mercato", "market analysis"}},
	{CategoryCompetitiveAnalysis, []string{"analisi competitiva", "analisi della concorrenza", "competitor analysis", "competitive analysis"}},
	{CategoryFinancialPlan, []string{"piano finanziario", "financial plan"}},
}

// Classify maps a free-text section name to its family. Matching is
// case-insensitive on the trimmed name; anything unknown is uncategorized.
func Classify(sectionName string) Category {
	name := strings.ToLower(strings.Join(strings.Fields(sectionName), " "))
	for _, entry := range categoryAliases {
		for _, alias := range entry.names {
			if name == alias {
				return entry.category
			}
		}
	}
	return CategoryUncategorized
}

// Guidance returns the extra instructions appended for the family, or "".
func (c Category) Guidance() string {
	switch c {
	case CategoryMarketAnalysis:
		return `
Per questa sezione di analisi di mercato, includi:
- Dimensione attuale del mercato con dati numerici
- Tasso di crescita previsto (CAGR)
- Segmentazione del mercato
- Tendenze principali
- Opportunità e sfide
`
	case CategoryCompetitiveAnalysis:
		return `
Per questa sezione di analisi competitiva, includi:
- Panoramica dei principali concorrenti
- Punti di forza e debolezza dei concorrenti
- Posizionamento dell'azienda rispetto ai concorrenti
- Vantaggi competitivi dell'azienda
- Analisi SWOT sintetica
`
	case CategoryFinancialPlan:
		return `
Per questa sezione di piano finanziario, includi:
- Proiezioni di fatturato per i prossimi anni
- Struttura dei costi principali
- Margini attesi
- Punto di pareggio
- Necessità di investimento e utilizzo dei fondi
`
	default:
		return ""
	}
}
