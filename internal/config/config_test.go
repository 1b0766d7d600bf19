package config_test

import (
	"net/http"
	"testing"

	"github.com/zhizhi/bobi/backend/internal/config"
)

// clearEnv pins every key Load reads so ambient CI variables cannot leak
// into assertions. Empty values read as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"CHAT_TIMEZONE", "CHAT_SYSTEM_PROMPT",
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_TEMPERATURE",
		"LLM_TOP_P", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
		"OPENAI_API_KEY", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_REGION",
		"STORE_REGION", "STORE_TABLE", "STORE_ENDPOINT",
		"SEARCH_HOST", "SEARCH_INDEX", "SEARCH_FIELDS", "SEARCH_METHOD",
		"SEARCH_REGION", "SEARCH_SERVICE", "SEARCH_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Table != "chatbot-history" || cfg.Store.Region != "ap-northeast-1" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Search.Index != "chat_bot_history" || cfg.Search.PageSize != 25 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.Method != http.MethodPost {
		t.Fatalf("expected POST default, got %s", cfg.Search.Method)
	}
	if cfg.Chat.Location.String() != "Asia/Tokyo" {
		t.Fatalf("unexpected timezone: %s", cfg.Chat.Location)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.5 {
		t.Fatalf("unexpected temperature default: %v", cfg.LLM.Temperature)
	}
}

func TestLoadSearchFieldsWithBoosts(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_FIELDS", " message^4 , sender ")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	fields := cfg.Search.Fields
	if len(fields) != 2 || fields[0] != "message^4" || fields[1] != "sender" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestLoadRejectsBadSearchMethod(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_METHOD", "PATCH")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unsupported SEARCH_METHOD")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_TIMEZONE", "Not/AZone")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for bad CHAT_TIMEZONE")
	}
}

func TestLoadPortVariants(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9999")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
}

func TestLLMEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.LLMConfig
		want bool
	}{
		{"no credentials", config.LLMConfig{Model: "gpt-3.5-turbo"}, false},
		{"openai with key", config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-3.5-turbo", APIKey: "k"}, true},
		{"ark with ak/sk", config.LLMConfig{Provider: config.ProviderArk, Model: "doubao", AccessKey: "a", SecretKey: "s"}, true},
		{"ark missing sk", config.LLMConfig{Provider: config.ProviderArk, Model: "doubao", AccessKey: "a"}, false},
		{"no model", config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "k"}, false},
	}

	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Fatalf("%s: Enabled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
