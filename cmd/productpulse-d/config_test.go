package main

import (
	"os"
	"strings"
	"testing"
)

func TestLoadConfig_RateValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid rates from flags",
			args:        []string{"-scrape-failure-rate", "0.2", "-llm-timeout-rate", "0.1"},
			expectError: false,
		},
		{
			name:        "scrape failure rate above one",
			args:        []string{"-scrape-failure-rate", "1.5"},
			expectError: true,
			errorSubstr: "scrape-failure-rate must be in [0,1]",
		},
		{
			name:        "negative llm timeout rate",
			args:        []string{"-llm-timeout-rate", "-0.1"},
			expectError: true,
			errorSubstr: "llm-timeout-rate must be in [0,1]",
		},
		{
			name:        "zero analyze rps",
			args:        []string{"-analyze-rps", "0"},
			expectError: true,
			errorSubstr: "analyze-rps must be positive",
		},
		{
			name:        "valid rates from env",
			envVars:     map[string]string{"PRODUCTPULSE_SCRAPE_FAILURE_RATE": "0.3"},
			expectError: false,
		},
		{
			name:        "invalid rate format from env",
			envVars:     map[string]string{"PRODUCTPULSE_SCRAPE_FAILURE_RATE": "lots"},
			expectError: true,
			errorSubstr: "invalid PRODUCTPULSE_SCRAPE_FAILURE_RATE",
		},
		{
			name:        "invalid seed from env",
			envVars:     map[string]string{"PRODUCTPULSE_SEED": "not-a-number"},
			expectError: true,
			errorSubstr: "invalid PRODUCTPULSE_SEED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			_, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.ScrapeFailureRate != defaultScrapeFail {
		t.Errorf("expected default scrape failure rate %v, got %v", defaultScrapeFail, cfg.ScrapeFailureRate)
	}
	if cfg.AnalyzeBurst != defaultAnalyzeBurst {
		t.Errorf("expected default burst %d, got %d", defaultAnalyzeBurst, cfg.AnalyzeBurst)
	}
	if !strings.HasSuffix(cfg.DBPath, "productpulse.db") {
		t.Errorf("expected default db path ending in productpulse.db, got %s", cfg.DBPath)
	}
}

func TestLoadConfig_AddrFromPortEnv(t *testing.T) {
	os.Setenv("PRODUCTPULSE_PORT", "9191")
	defer os.Unsetenv("PRODUCTPULSE_PORT")

	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9191" {
		t.Errorf("expected 127.0.0.1:9191, got %s", cfg.Addr)
	}
}

func TestLoadConfig_FlagOverridesEnv(t *testing.T) {
	os.Setenv("PRODUCTPULSE_ADDR", "127.0.0.1:7000")
	defer os.Unsetenv("PRODUCTPULSE_ADDR")

	cfg, err := LoadConfig([]string{"-addr", "127.0.0.1:8000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8000" {
		t.Errorf("expected flag to win over env, got %s", cfg.Addr)
	}
}
