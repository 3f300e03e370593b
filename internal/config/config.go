package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenDur   time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	// Verification engine knobs.
	SMSCodeLength      int
	SMSCodeMaxAttempts int
	SMSCodeTTL         time.Duration
	EmailTokenTTL      time.Duration
	VerifyEmailURL     string
	SendSMSText        bool
	SendSMSCall        bool
	SendEmailVerify    bool

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts           string
	Credentials        string
	Sessions           string
	PhoneCodes         string
	EmailVerifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:           getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			Credentials:        getEnv("DYNAMO_TABLE_CREDENTIALS", "credentials"),
			Sessions:           getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			PhoneCodes:         getEnv("DYNAMO_TABLE_PHONE_CODES", "phone_codes"),
			EmailVerifications: getEnv("DYNAMO_TABLE_EMAIL_VERIFICATIONS", "email_verifications"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RefreshTokenDur:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		SMSCodeLength:      getEnvInt("SMS_CODE_LENGTH", 6),
		SMSCodeMaxAttempts: getEnvInt("SMS_CODE_MAXIMUM_ATTEMPTS", 3),
		SMSCodeTTL:         time.Duration(getEnvInt("SMS_CODE_TTL_MINUTES", 15)) * time.Minute,
		EmailTokenTTL:      time.Duration(getEnvInt("EMAIL_TOKEN_TTL_HOURS", 24)) * time.Hour,
		VerifyEmailURL:     getEnv("VERIFY_EMAIL_URL", "http://localhost:3000/v1/confirm-email/verify"),
		SendSMSText:        getEnvBool("SEND_SMS_TEXT", true),
		SendSMSCall:        getEnvBool("SEND_SMS_CALL", false),
		SendEmailVerify:    getEnvBool("SEND_EMAIL_VERIFICATION", true),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
