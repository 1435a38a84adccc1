package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the flow service and its
// external collaborators.
type Config struct {
	ListenAddr string
	MySQLDSN   string

	TavilyAPIKey  string
	TavilyBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	RequestTimeout   time.Duration
	FlowDeadline     time.Duration
	SearchDays       int
	SearchMaxResults int
	GeneralNewsQuery string
	FlowCreditCost   int

	WeeklyLimitFree  int
	WeeklyLimitBasic int
	WeeklyLimitPro   int

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Prefix       string
	S3UsePathStyle bool
}

// ArchiveEnabled reports whether the optional S3 document archive is configured.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultTavilyBaseURL = "https://api.tavily.com"
	const defaultOpenAIBaseURL = "https://api.openai.com"

	cfg := Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		TavilyBaseURL:    normalizeBaseURL(getEnv("TAVILY_BASE_URL", defaultTavilyBaseURL), defaultTavilyBaseURL),
		OpenAIBaseURL:    normalizeBaseURL(getEnv("OPENAI_BASE_URL", defaultOpenAIBaseURL), defaultOpenAIBaseURL),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		RequestTimeout:   time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		FlowDeadline:     time.Second * time.Duration(getInt("FLOW_DEADLINE_SECONDS", 300)),
		SearchDays:       getInt("SEARCH_DAYS", 7),
		SearchMaxResults: getInt("SEARCH_MAX_RESULTS", 5),
		GeneralNewsQuery: getEnv("GENERAL_NEWS_QUERY", "top world news today"),
		FlowCreditCost:   getInt("FLOW_CREDIT_COST", 1),
		WeeklyLimitFree:  getInt("WEEKLY_LIMIT_FREE", 2),
		WeeklyLimitBasic: getInt("WEEKLY_LIMIT_BASIC", 7),
		WeeklyLimitPro:   getInt("WEEKLY_LIMIT_PRO", 30),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3Region:         os.Getenv("S3_REGION"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Prefix:         getEnv("S3_PREFIX", "flows"),
		S3UsePathStyle:   getBool("S3_USE_PATH_STYLE", false),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.TavilyAPIKey == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if cfg.ArchiveEnabled() {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// normalizeBaseURL keeps collaborator base URLs scheme-qualified so path
// joining never lands on a relative URL.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// No env file is fine; plain environment variables still apply.
	return nil
}
