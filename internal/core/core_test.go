package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSectionStateDefaults(t *testing.T) {
	s := NewSectionState(BusinessProfile{CompanyName: "Azienda Test"})

	if s.TimeHorizon != DefaultTimeHorizon {
		t.Errorf("Expected TimeHorizon %q, got %q", DefaultTimeHorizon, s.TimeHorizon)
	}
	if got := s.TemperatureOr(DefaultTemperature); got != DefaultTemperature {
		t.Errorf("Expected Temperature %v, got %v", DefaultTemperature, got)
	}
	if s.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected MaxTokens %d, got %d", DefaultMaxTokens, s.MaxTokens)
	}
	if !s.IsLengthAuto() {
		t.Error("Expected length auto to default to true")
	}
	if s.Language != DefaultLanguage {
		t.Errorf("Expected Language %q, got %q", DefaultLanguage, s.Language)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	off := false
	temp := float32(0.7)
	s := SectionState{Temperature: &temp, MaxTokens: 1200, LengthAuto: &off}
	s.ApplyDefaults()

	if got := s.TemperatureOr(DefaultTemperature); got != 0.7 {
		t.Errorf("Expected Temperature 0.7, got %v", got)
	}
	if s.MaxTokens != 1200 {
		t.Errorf("Expected MaxTokens 1200, got %d", s.MaxTokens)
	}
	if s.IsLengthAuto() {
		t.Error("Expected explicit length_auto=false to survive defaults")
	}
}

func TestZeroTemperatureSurvivesDefaults(t *testing.T) {
	zero := float32(0)
	s := SectionState{Temperature: &zero}
	s.ApplyDefaults()

	if got := s.TemperatureOr(DefaultTemperature); got != 0 {
		t.Errorf("Expected explicit temperature 0 to be kept, got %v", got)
	}
	if got := (SectionState{}).TemperatureOr(0.5); got != 0.5 {
		t.Errorf("Expected fallback 0.5 for unset temperature, got %v", got)
	}
}

func TestProfileNumbersFromJSON(t *testing.T) {
	var s SectionState
	body := `{"company_name":"Acme","year_founded":2020,"num_employees":"12","time_horizon":null}`
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.YearFounded != "2020" {
		t.Errorf("Expected year founded 2020, got %q", s.YearFounded)
	}
	if s.NumEmployees != "12" {
		t.Errorf("Expected 12 employees, got %q", s.NumEmployees)
	}

	if err := json.Unmarshal([]byte(`{"year_founded":true}`), &s); err == nil {
		t.Error("Expected an error for a boolean year_founded")
	}
}

func TestProfileNumbersFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("company_name: Acme\nyear_founded: 2019\nnum_employees: 40\ntemperature: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s.YearFounded != "2019" || s.NumEmployees != "40" {
		t.Errorf("Unexpected numeric fields %q / %q", s.YearFounded, s.NumEmployees)
	}
	if s.Temperature == nil || *s.Temperature != 0 {
		t.Errorf("Expected temperature 0 from YAML, got %v", s.Temperature)
	}
}

func TestCustomPrompt(t *testing.T) {
	s := SectionState{SectionPrompts: map[string]string{"Sommario Esecutivo": "scrivi il sommario", "vuota": ""}}

	if p, ok := s.CustomPrompt("Sommario Esecutivo"); !ok || p != "scrivi il sommario" {
		t.Errorf("Expected custom prompt, got %q (%v)", p, ok)
	}
	if _, ok := s.CustomPrompt("vuota"); ok {
		t.Error("Expected empty custom prompt to be treated as absent")
	}
	if _, ok := (SectionState{}).CustomPrompt("x"); ok {
		t.Error("Expected nil prompt map to yield no prompt")
	}
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	content := `company_name: Azienda Test
business_sector: Tecnologia
target_market: PMI
length_type: media
section_prompts:
  conclusione: "prompt personalizzato"
perplexity_results:
  market_size:
    description: "Il mercato vale 2 miliardi di euro"
  trends:
    - description: "Adozione AI"
  competitors:
    - name: "Rivale SpA"
      description: "Leader di mercato"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s.CompanyName != "Azienda Test" {
		t.Errorf("Expected company name from inline profile, got %q", s.CompanyName)
	}
	if s.LengthType != "media" {
		t.Errorf("Expected length type media, got %q", s.LengthType)
	}
	if s.PerplexityResults == nil || len(s.PerplexityResults.Competitors) != 1 {
		t.Fatalf("Expected research bundle with one competitor, got %+v", s.PerplexityResults)
	}
	if s.PerplexityResults.Competitors[0].Name != "Rivale SpA" {
		t.Errorf("Unexpected competitor name %q", s.PerplexityResults.Competitors[0].Name)
	}
	if s.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected defaults to be applied, got MaxTokens %d", s.MaxTokens)
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	if _, err := LoadState(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing state file")
	}
}

func TestResearchBundleIsEmpty(t *testing.T) {
	var nilBundle *ResearchBundle
	if !nilBundle.IsEmpty() {
		t.Error("Expected nil bundle to be empty")
	}
	if !(&ResearchBundle{}).IsEmpty() {
		t.Error("Expected zero bundle to be empty")
	}
	b := &ResearchBundle{Trends: []Trend{{Description: "crescita"}}}
	if b.IsEmpty() {
		t.Error("Expected bundle with a trend to be non-empty")
	}
}

func TestNewAssistantResponse(t *testing.T) {
	r := NewAssistantResponse("testo")
	if len(r.Messages) != 1 {
		t.Fatalf("Expected one message, got %d", len(r.Messages))
	}
	if r.Messages[0].Role != RoleAssistant {
		t.Errorf("Expected role %q, got %q", RoleAssistant, r.Messages[0].Role)
	}
	if r.Content() != "testo" {
		t.Errorf("Expected content 'testo', got %q", r.Content())
	}
	if (SectionResponse{}).Content() != "" {
		t.Error("Expected empty response content to be empty")
	}
}
