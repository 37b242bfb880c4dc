package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewClient_NoAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "  ")
	if err == nil {
		t.Fatal("Expected error when no API key is available")
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got: %v", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Expected error to mention GEMINI_API_KEY, got: %v", err)
	}
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient(context.Background(), "dummy-key",
		WithModel("gemini-2.5-flash"),
		WithTimeout(5*time.Second),
		WithSampling(0.8, 20),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.ModelName() != "gemini-2.5-flash" {
		t.Errorf("Expected model gemini-2.5-flash, got %s", client.ModelName())
	}
	if client.timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", client.timeout)
	}
	if client.topP != 0.8 || client.topK != 20 {
		t.Errorf("Expected sampling 0.8/20, got %v/%v", client.topP, client.topK)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(context.Background(), "dummy-key", WithModel(""), WithTimeout(0))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.ModelName() != DefaultModel {
		t.Errorf("Expected default model %s, got %s", DefaultModel, client.ModelName())
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", client.timeout)
	}
}

func TestBuildConfig(t *testing.T) {
	client := &Client{topP: DefaultTopP, topK: DefaultTopK}

	config := client.buildConfig(TextGenerationOptions{MaxTokens: 4000, Temperature: 0.2})
	if config.MaxOutputTokens != 4000 {
		t.Errorf("Expected MaxOutputTokens 4000, got %d", config.MaxOutputTokens)
	}
	if config.Temperature == nil || *config.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", config.Temperature)
	}
	if *config.TopP != DefaultTopP || *config.TopK != DefaultTopK {
		t.Errorf("Expected default sampling, got %v/%v", *config.TopP, *config.TopK)
	}

	config = client.buildConfig(TextGenerationOptions{Temperature: 0, TopK: 10})
	if config.Temperature == nil || *config.Temperature != 0 {
		t.Error("Expected zero temperature to be sent explicitly")
	}
	if *config.TopK != 10 {
		t.Errorf("Expected TopK override 10, got %v", *config.TopK)
	}
	if config.MaxOutputTokens != 0 {
		t.Errorf("Expected no token limit, got %d", config.MaxOutputTokens)
	}
}

func TestGenerateText_EmptyPrompt(t *testing.T) {
	client := &Client{modelName: DefaultModel, timeout: time.Second}
	_, err := client.GenerateText(context.Background(), "   ", TextGenerationOptions{})
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("Expected ErrEmptyPrompt, got %v", err)
	}
}

func TestGenerateText_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	client, err := NewClient(context.Background(), apiKey, WithModel("gemini-2.5-flash"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.GenerateText(context.Background(), "Rispondi solo con la parola: ciao", TextGenerationOptions{
		MaxTokens:   50,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty response")
	}
}
