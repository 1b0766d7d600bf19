package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads. Values come from the
// environment once at startup and are never mutated afterwards.
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	LLM    LLMConfig
	Store  StoreConfig
	Search SearchConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Chat: chat, LLM: llm, Store: store, Search: search}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// defaultSystemPrompt seeds every new transcript with the Bobi assistant
// persona unless CHAT_SYSTEM_PROMPT overrides it.
const defaultSystemPrompt = "あなたの名前は Bobi です。あなたは zhizhi によって作られました。回答を 500 文字以内にしてください。"

// ChatConfig describes conversation-level settings.
type ChatConfig struct {
	SystemPrompt string
	Location     *time.Location
}

func loadChatConfig() (ChatConfig, error) {
	zone := getEnvOrDefault("CHAT_TIMEZONE", "Asia/Tokyo")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_TIMEZONE value %q: %w", zone, err)
	}

	return ChatConfig{
		SystemPrompt: getEnvOrDefault("CHAT_SYSTEM_PROMPT", defaultSystemPrompt),
		Location:     loc,
	}, nil
}

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// LLMConfig describes the completion provider.
type LLMConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled reports whether the required credentials are present.
func (c LLMConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// NewChatModel builds the configured chat model instance.
func (c LLMConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("LLM credentials or model missing: set LLM_MODEL plus OPENAI_API_KEY (openai) or ARK_API_KEY / AK+SK (ark)")
	}

	temperature := float64PtrTo32(c.Temperature)
	topP := float64PtrTo32(c.TopP)

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     c.BaseURL,
			APIKey:      c.APIKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER value: %q", c.Provider)
	}
}

func loadLLMConfig() (LLMConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}
	if temperature == nil {
		val := 0.5
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	timeout, err := parseDurationSecondsEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return LLMConfig{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if provider == ProviderArk {
		apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
	}

	return LLMConfig{
		Provider:    provider,
		APIKey:      apiKey,
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       getEnvOrDefault("LLM_MODEL", "gpt-3.5-turbo"),
		BaseURL:     strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// StoreConfig describes the DynamoDB message store.
type StoreConfig struct {
	Region   string
	Table    string
	Endpoint string
}

func loadStoreConfig() (StoreConfig, error) {
	return StoreConfig{
		Region:   getEnvOrDefault("STORE_REGION", "ap-northeast-1"),
		Table:    getEnvOrDefault("STORE_TABLE", "chatbot-history"),
		Endpoint: strings.TrimSpace(os.Getenv("STORE_ENDPOINT")),
	}, nil
}

// LoadAWSConfig resolves the shared AWS configuration for the store region.
// Credentials come from the default provider chain (env, profile, task role).
func (c StoreConfig) LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// NewDynamoClient builds the DynamoDB client, honouring STORE_ENDPOINT for
// local development against dynamodb-local.
func (c StoreConfig) NewDynamoClient(awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})
}

// SearchConfig describes the external search index. The field list and the
// HTTP verb vary between deployments, so both are configuration rather than
// constants.
type SearchConfig struct {
	Host     string
	Index    string
	Fields   []string
	Method   string
	PageSize int
	Region   string
	Service  string
	Timeout  time.Duration
}

// Enabled reports whether a search host is configured.
func (c SearchConfig) Enabled() bool {
	return c.Host != ""
}

func loadSearchConfig() (SearchConfig, error) {
	method := strings.ToUpper(getEnvOrDefault("SEARCH_METHOD", http.MethodPost))
	if method != http.MethodPost && method != http.MethodGet {
		return SearchConfig{}, fmt.Errorf("invalid SEARCH_METHOD value: %q", method)
	}

	timeout, err := parseDurationSecondsEnv("SEARCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return SearchConfig{}, err
	}

	// Boost suffixes such as "message^4" pass through to the index as-is.
	fields := splitAndTrim(getEnvOrDefault("SEARCH_FIELDS", "sender,message"))
	if len(fields) == 0 {
		return SearchConfig{}, fmt.Errorf("SEARCH_FIELDS must name at least one field")
	}

	return SearchConfig{
		Host:     strings.TrimRight(strings.TrimSpace(os.Getenv("SEARCH_HOST")), "/"),
		Index:    getEnvOrDefault("SEARCH_INDEX", "chat_bot_history"),
		Fields:   fields,
		Method:   method,
		PageSize: 25,
		Region:   getEnvOrDefault("SEARCH_REGION", "ap-northeast-1"),
		Service:  getEnvOrDefault("SEARCH_SERVICE", "es"),
		Timeout:  timeout,
	}, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func float64PtrTo32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

func parseDurationSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return defaultValue, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value: must be positive seconds", key)
	}
	return time.Duration(*seconds) * time.Second, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
