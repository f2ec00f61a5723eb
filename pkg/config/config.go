package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	PostgresDSN string
	SQLitePath  string

	// JWT配置
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// OAuth配置
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURI   string
	BaseURL            string

	// 邮件配置（Resend 优先，其次 SMTP）
	ResendAPIKey string
	MailFrom     string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string

	// OTP配置
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// CORS配置
	AllowedOrigins []string

	// 日志与调试
	LogLevel string
	Debug    bool
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
		Port:            getEnvWithDefault("PORT", "3000"),
		JWTSecret:       getEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OTPTTL:          getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:  getEnvInt("OTP_MAX_ATTEMPTS", 5),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		Debug:           getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SQLitePath = strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	config.GoogleClientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	config.GoogleClientSecret = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	config.OAuthRedirectURI = strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_URI"))
	config.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))

	config.ResendAPIKey = strings.TrimSpace(os.Getenv("RESEND_API_KEY"))
	config.MailFrom = getEnvWithDefault("MAIL_FROM", "no-reply@localhost")
	config.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	config.SMTPPort = getEnvWithDefault("SMTP_PORT", "587")
	config.SMTPUser = os.Getenv("SMTP_USER")
	config.SMTPPass = os.Getenv("SMTP_PASS")

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Debug && os.Getenv("LOG_LEVEL") == "" {
		config.LogLevel = "debug"
	}

	// 开发环境默认使用本地 SQLite 文件
	if config.PostgresDSN == "" && config.SQLitePath == "" && config.Environment != "production" {
		config.SQLitePath = "./data/timetrack.db"
	}

	// 生产环境关闭调试
	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel) it initializes once per cold start and is reused
// across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}

	if c.PostgresDSN == "" && c.SQLitePath == "" {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or SQLITE_PATH")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GoogleOAuthEnabled reports whether both Google client credentials are present.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// 辅助函数

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile 加载 .env 文件到环境变量，已存在的变量不会被覆盖
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
