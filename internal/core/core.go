package core

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTimeHorizon is used when a profile does not state one.
	DefaultTimeHorizon = "3 anni"
	// DefaultTemperature is the generation temperature for business-plan text.
	DefaultTemperature = float32(0.2)
	// DefaultMaxTokens caps the model output per section.
	DefaultMaxTokens = 4000
	// DefaultLanguage is the language sections are written in.
	DefaultLanguage = "italiano"
	// DefaultStyle is the register sections are written in.
	DefaultStyle = "professionale e formale"

	// RoleAssistant is the only role the section generator emits.
	RoleAssistant = "assistant"
)

// BusinessProfile holds the company facts every default section prompt embeds.
type BusinessProfile struct {
	CompanyName        string `json:"company_name" yaml:"company_name"`
	BusinessSector     string `json:"business_sector" yaml:"business_sector"`
	CompanyDescription string `json:"company_description" yaml:"company_description"`
	YearFounded        Text   `json:"year_founded" yaml:"year_founded"`
	NumEmployees       Text   `json:"num_employees" yaml:"num_employees"`
	MainProducts       string `json:"main_products" yaml:"main_products"`
	TargetMarket       string `json:"target_market" yaml:"target_market"`
	Area               string `json:"area" yaml:"area"` // Geographic area of operation
	PlanObjectives     string `json:"plan_objectives" yaml:"plan_objectives"`
	TimeHorizon        string `json:"time_horizon" yaml:"time_horizon"`
	FundingNeeds       string `json:"funding_needs" yaml:"funding_needs"`
}

// Text is a free-form profile field. JSON clients may send it as a string
// or as a number ("year_founded": 2020).
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

// SectionState is the caller-owned input of a section generation.
// The generator only reads it.
type SectionState struct {
	BusinessProfile `yaml:",inline"`

	SectionPrompts       map[string]string `json:"section_prompts,omitempty" yaml:"section_prompts,omitempty"`
	SectionDocumentsText string            `json:"section_documents_text,omitempty" yaml:"section_documents_text,omitempty"`
	PerplexityResults    *ResearchBundle   `json:"perplexity_results,omitempty" yaml:"perplexity_results,omitempty"`

	Temperature *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"` // nil uses the configured default
	MaxTokens   int      `json:"max_tokens" yaml:"max_tokens"`
	LengthType  string   `json:"length_type,omitempty" yaml:"length_type,omitempty"`
	LengthAuto  *bool    `json:"length_auto,omitempty" yaml:"length_auto,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	Style       string   `json:"style,omitempty" yaml:"style,omitempty"`

	// SessionID attributes usage to a caller session; empty disables tracking.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// NewSectionState returns a state with every default applied.
func NewSectionState(profile BusinessProfile) SectionState {
	s := SectionState{BusinessProfile: profile}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills zero-valued generation fields. Temperature is left
// alone: an unset temperature resolves against configuration through
// TemperatureOr, and an explicit 0 is a valid request.
func (s *SectionState) ApplyDefaults() {
	if s.TimeHorizon == "" {
		s.TimeHorizon = DefaultTimeHorizon
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	if s.Style == "" {
		s.Style = DefaultStyle
	}
	if s.LengthAuto == nil {
		auto := true
		s.LengthAuto = &auto
	}
}

// TemperatureOr returns the requested temperature, or fallback when unset.
func (s SectionState) TemperatureOr(fallback float32) float32 {
	if s.Temperature == nil {
		return fallback
	}
	return *s.Temperature
}

// IsLengthAuto reports whether the length instruction should be sent to the model.
func (s SectionState) IsLengthAuto() bool {
	return s.LengthAuto == nil || *s.LengthAuto
}

// CustomPrompt returns the caller-supplied prompt for a section, if any.
func (s SectionState) CustomPrompt(section string) (string, bool) {
	if s.SectionPrompts == nil {
		return "", false
	}
	p, ok := s.SectionPrompts[section]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// LoadState reads a YAML profile file into a SectionState with defaults applied.
func LoadState(path string) (SectionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SectionState{}, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	var s SectionState
	if err := yaml.Unmarshal(data, &s); err != nil {
		return SectionState{}, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	s.ApplyDefaults()
	return s, nil
}

// MarketSize describes the addressable market.
type MarketSize struct {
	Description string `json:"description" yaml:"description"`
	Value       string `json:"value,omitempty" yaml:"value,omitempty"`
	CAGR        string `json:"cagr,omitempty" yaml:"cagr,omitempty"`
}

// Trend is a single market trend.
type Trend struct {
	Description string `json:"description" yaml:"description"`
}

// Competitor is a named competitor with a short profile.
type Competitor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Opportunity is a single market opportunity.
type Opportunity struct {
	Description string `json:"description" yaml:"description"`
}

// ResearchBundle is structured market research used to enrich a prompt.
type ResearchBundle struct {
	MarketSize    MarketSize    `json:"market_size" yaml:"market_size"`
	Trends        []Trend       `json:"trends" yaml:"trends"`
	Competitors   []Competitor  `json:"competitors" yaml:"competitors"`
	Opportunities []Opportunity `json:"opportunities" yaml:"opportunities"`
	GeneratedAt   time.Time     `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
}

// IsEmpty reports whether the bundle carries no usable data.
func (b *ResearchBundle) IsEmpty() bool {
	if b == nil {
		return true
	}
	return b.MarketSize.Description == "" && len(b.Trends) == 0 &&
		len(b.Competitors) == 0 && len(b.Opportunities) == 0
}

// Message is a chat-style message in a section response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SectionResponse is the only shape a section generation returns.
type SectionResponse struct {
	Messages []Message `json:"messages"`
}

// NewAssistantResponse wraps content in a single assistant message.
func NewAssistantResponse(content string) SectionResponse {
	return SectionResponse{Messages: []Message{{Role: RoleAssistant, Content: content}}}
}

// Content returns the content of the last message, or "" when there is none.
func (r SectionResponse) Content() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}
