package meld

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-derived settings for building a Dispatcher.
type Config struct {
	Mode          Mode
	Backend       string
	LocalRoot     string
	MaxComponents int
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
}

// LoadConfig reads configuration from the environment after loading any .env file.
//
// MELD_MODE selects the mode explicitly. When it is unset, a SERVER_SOFTWARE value
// starting with "Dev" selects local mode.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config using getenv as the variable source.
func ConfigFromEnv(getenv func(string) string) (*Config, error) {
	rawMode := strings.TrimSpace(getenv("MELD_MODE"))
	if rawMode == "" && strings.HasPrefix(getenv("SERVER_SOFTWARE"), "Dev") {
		rawMode = ModeLocal.String()
	}
	mode, err := ParseMode(rawMode)
	if err != nil {
		return nil, err
	}

	maxComponents := MaxComponents
	if raw := strings.TrimSpace(getenv("MELD_MAX_COMPONENTS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("meld: invalid MELD_MAX_COMPONENTS %q", raw)
		}
		maxComponents = n
	}

	return &Config{
		Mode:          mode,
		Backend:       strings.ToLower(firstNonEmpty(strings.TrimSpace(getenv("MELD_BACKEND")), "gcs")),
		LocalRoot:     firstNonEmpty(strings.TrimSpace(getenv("MELD_LOCAL_ROOT")), ".meld"),
		MaxComponents: maxComponents,
		Endpoint:      strings.TrimSpace(getenv("MELD_ENDPOINT")),
		Region:        firstNonEmpty(strings.TrimSpace(getenv("MELD_REGION")), "us-east-1"),
		AccessKey:     strings.TrimSpace(getenv("MELD_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(getenv("MELD_SECRET_KEY")),
		UseSSL:        parseBool(getenv("MELD_USE_SSL"), true),
	}, nil
}

func parseBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
