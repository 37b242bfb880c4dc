package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bizplan/internal/config"
	"bizplan/internal/core"
	"bizplan/internal/cost"
	"bizplan/internal/logger"
	"bizplan/internal/section"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// defaultSections are written when no --section flag is given.
var defaultSections = []string{
	"Executive Summary",
	"Analisi di mercato",
	"Analisi competitiva",
	"Piano finanziario",
}

type generateFlags struct {
	sections     []string
	words        int
	length       string
	noResearch   bool
	autoResearch bool
	session      string
	apiKey       string
	jsonOut      bool
	estimate     bool
	mock         bool
}

type sectionOutput struct {
	Section   string               `json:"section"`
	WordCount int                  `json:"word_count"`
	Response  core.SectionResponse `json:"response"`
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate <profile.yaml>",
		Short: "Generate business-plan sections from a company profile",
		Long: `Generate one or more business-plan sections from a YAML company profile.

Examples:
  # Default sections, medium length
  bizplan generate azienda.yaml

  # One section, about 500 words, without market research
  bizplan generate azienda.yaml --section "Analisi di mercato" --words 500 --no-research

  # Estimate cost only
  bizplan generate azienda.yaml --length dettagliata --estimate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], f)
		},
	}

	cmd.Flags().StringArrayVarP(&f.sections, "section", "s", nil, "section to generate (repeatable)")
	cmd.Flags().IntVarP(&f.words, "words", "w", 0, "target word count (overrides --length)")
	cmd.Flags().StringVarP(&f.length, "length", "l", "", "length type: breve, media, dettagliata")
	cmd.Flags().BoolVar(&f.noResearch, "no-research", false, "never blend market research into the prompt")
	cmd.Flags().BoolVar(&f.autoResearch, "auto-research", false, "collect research from Brave when the profile has none")
	cmd.Flags().StringVar(&f.session, "session", "", "session ID for usage tracking (default: profile value or a new UUID)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Gemini API key (takes precedence over env and config)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print responses as JSON")
	cmd.Flags().BoolVar(&f.estimate, "estimate", false, "print a cost estimate and exit without calling the model")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "collect research from canned offline results")

	return cmd
}

func runGenerate(cmd *cobra.Command, profilePath string, f generateFlags) error {
	cfg := config.Get()

	state, err := core.LoadState(profilePath)
	if err != nil {
		return err
	}
	state.SessionID = firstNonEmpty(f.session, state.SessionID, uuid.New().String())

	sections := f.sections
	if len(sections) == 0 {
		sections = defaultSections
	}

	lengthType := firstNonEmpty(f.length, state.LengthType, cfg.Section.LengthType)
	if f.words <= 0 && !knownLengthType(lengthType) {
		logger.Warn("Unknown length type, using the default word count",
			"length_type", lengthType,
			"word_count", section.ResolveWordCount(0, lengthType),
			"valid", "breve, media, dettagliata")
	}

	if f.estimate {
		fmt.Println(planEstimate(cfg.AI.Gemini.Model, sections, state, f.words, lengthType).FormatEstimate())
		return nil
	}

	if f.autoResearch {
		cfg.Section.AutoResearch = true
	}

	usage, err := newUsageStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open usage database: %w", err)
	}
	if usage != nil {
		defer func() {
			if err := usage.Close(); err != nil {
				logger.Error("Failed to close usage database", err)
			}
		}()
	}

	gen := newSectionGenerator(cfg, generatorSetup{apiKey: f.apiKey, mock: f.mock}, usage)
	opts := section.Options{
		WordCount:       f.words,
		LengthType:      f.length,
		IncludeResearch: !f.noResearch && cfg.Section.IncludeResearch,
	}

	logger.Info("Generating sections", "count", len(sections), "session", state.SessionID, "length_type", lengthType)

	outputs := make([]sectionOutput, 0, len(sections))
	for _, name := range sections {
		resp := gen.GenerateSection(cmd.Context(), name, state, opts)
		outputs = append(outputs, sectionOutput{
			Section:   name,
			WordCount: section.WordCount(resp.Content()),
			Response:  resp,
		})
		if !f.jsonOut {
			printSection(name, resp.Content(), section.ResolveWordCount(f.words, lengthType))
		}
	}

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(outputs)
	}

	if usage != nil {
		if stats, err := usage.Stats(state.SessionID); err == nil {
			printUsageLine(stats)
		}
	}
	return nil
}

// knownLengthType reports whether lengthType names a preset. An empty type
// counts as known: it resolves to the default without a warning.
func knownLengthType(lengthType string) bool {
	lengthType = strings.ToLower(strings.TrimSpace(lengthType))
	if lengthType == "" {
		return true
	}
	_, ok := section.LengthTypes()[lengthType]
	return ok
}

// planEstimate prices the run without touching the model.
func planEstimate(model string, sections []string, state core.SectionState, words int, lengthType string) *cost.PlanEstimate {
	plans := make([]cost.SectionPlan, 0, len(sections))
	for _, name := range sections {
		plans = append(plans, cost.SectionPlan{
			Name:      name,
			Prompt:    section.BuildPrompt(name, state),
			WordCount: section.ResolveWordCount(words, lengthType),
		})
	}
	return cost.EstimatePlanCost(model, plans)
}

func printSection(name, content string, target int) {
	bold := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	bold.Printf("## %s\n", name)

	got := section.WordCount(content)
	status := color.GreenString("%d parole", got)
	if !section.WithinTolerance(content, target, section.DefaultTolerance) {
		status = color.YellowString("%d parole (obiettivo %d)", got, target)
	}
	fmt.Printf("%s\n\n", status)
	fmt.Println(content)
}
