package component

import (
	"context"
	"testing"

	"tutor/internal/config"
)

func TestNewChatModelRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
	}{
		{"missing api key", config.AIConfig{Provider: "openai"}},
		{"unknown provider", config.AIConfig{Provider: "anthropic", APIKey: "k"}},
		{"azure without base url", config.AIConfig{Provider: "azure", APIKey: "k", Model: "gpt-4o"}},
		{"ark without endpoint", config.AIConfig{Provider: "ark", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChatModel(context.Background(), &tt.cfg); err == nil {
				t.Errorf("NewChatModel(%+v) should fail", tt.cfg)
			}
		})
	}
}

func TestNewChatModelOpenAI(t *testing.T) {
	cfg := &config.AIConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		BaseURL:  "http://127.0.0.1:1/v1",
		Options:  config.AIOptionsConfig{Temperature: 0.2, MaxTokens: 512},
	}
	m, err := NewChatModel(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewChatModel() error = %v", err)
	}
	if m == nil {
		t.Fatal("NewChatModel() returned nil model")
	}
}
