package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server     ServerConfig
	Dialog     DialogConfig
	Throttling ThrottlingConfig
	Intent     IntentConfig
	Mongo      MongoConfig
	NATS       NATSConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	dialog, err := loadDialogConfig()
	if err != nil {
		return nil, err
	}

	throttling, err := loadThrottlingConfig()
	if err != nil {
		return nil, err
	}

	intent, err := loadIntentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		Dialog:     dialog,
		Throttling: throttling,
		Intent:     intent,
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
			Database: getEnvOrDefault("MONGO_DATABASE", "voicedesk"),
		},
		NATS: NATSConfig{
			URL: strings.TrimSpace(os.Getenv("NATS_URL")),
		},
	}, nil
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

	// Accept ":8080" and "127.0.0.1:8080" as-is.
	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DialogConfig tunes the session store and slot validation.
type DialogConfig struct {
	SessionTTL        time.Duration
	MinimumPickupLead time.Duration
}

func loadDialogConfig() (DialogConfig, error) {
	ttlMinutes, err := parseOptionalIntEnv("DIALOG_SESSION_TTL_MINUTES")
	if err != nil {
		return DialogConfig{}, err
	}
	ttl := 30 * time.Minute
	if ttlMinutes != nil && *ttlMinutes > 0 {
		ttl = time.Duration(*ttlMinutes) * time.Minute
	}

	leadMinutes, err := parseOptionalIntEnv("DIALOG_MIN_PICKUP_LEAD_MINUTES")
	if err != nil {
		return DialogConfig{}, err
	}
	lead := 10 * time.Minute
	if leadMinutes != nil && *leadMinutes > 0 {
		lead = time.Duration(*leadMinutes) * time.Minute
	}

	return DialogConfig{SessionTTL: ttl, MinimumPickupLead: lead}, nil
}

// ThrottlingConfig caps orders per pickup slot and bounds cancellation.
type ThrottlingConfig struct {
	MaxOrdersPerSlot   int
	CancellationWindow time.Duration
}

func loadThrottlingConfig() (ThrottlingConfig, error) {
	maxOrders, err := parseOptionalIntEnv("THROTTLE_MAX_ORDERS_PER_SLOT")
	if err != nil {
		return ThrottlingConfig{}, err
	}
	limit := 20
	if maxOrders != nil && *maxOrders > 0 {
		limit = *maxOrders
	}

	windowMinutes, err := parseOptionalIntEnv("CANCELLATION_WINDOW_MINUTES")
	if err != nil {
		return ThrottlingConfig{}, err
	}
	window := 10 * time.Minute
	if windowMinutes != nil && *windowMinutes > 0 {
		window = time.Duration(*windowMinutes) * time.Minute
	}

	return ThrottlingConfig{MaxOrdersPerSlot: limit, CancellationWindow: window}, nil
}

// IntentConfig describes the LLM intent classifier. When the credentials
// are missing the service runs on the keyword classifier alone.
type IntentConfig struct {
	APIKey        string
	AccessKey     string
	SecretKey     string
	Model         string
	BaseURL       string
	Region        string
	MinConfidence float64
	LLMEnabled    bool
}

// Enabled reports whether the required credentials were provided.
func (c IntentConfig) Enabled() bool {
	return c.LLMEnabled && c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model used by the LLM classifier.
func (c IntentConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark credentials missing: provide ARK_API_KEY or AK/SK plus ARK_MODEL")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadIntentConfig() (IntentConfig, error) {
	llmEnabled, err := parseBoolEnv("INTENT_LLM_ENABLED", false)
	if err != nil {
		return IntentConfig{}, err
	}

	confidence, err := parseOptionalFloatEnv("INTENT_MIN_CONFIDENCE")
	if err != nil {
		return IntentConfig{}, err
	}
	minConfidence := 0.25
	if confidence != nil && *confidence > 0 {
		minConfidence = *confidence
	}

	return IntentConfig{
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		MinConfidence: minConfidence,
		LLMEnabled:    llmEnabled,
	}, nil
}

// MongoConfig describes the optional order persistence backend. An empty
// URI keeps orders in memory.
type MongoConfig struct {
	URI      string
	Database string
}

// NATSConfig describes the optional event broker. An empty URL routes
// notifications to the process log.
type NATSConfig struct {
	URL string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
