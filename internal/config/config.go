// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Auth     AuthConfig
	Token    TokenConfig
	Session  SessionConfig
	Mail     MailConfig
	Audit    AuditConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // Directory for auto-generated certificates
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host            string
	Port            int
	BaseURL         string
	MaxBodySize     int // in MB
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // SQLite path or postgres:// URL
}

// AuthConfig controls the activation code lifecycle.
type AuthConfig struct { //nolint:govet // fieldalignment not critical
	ActivationTTL time.Duration // Lifetime of an activation code
	CodeLength    int           // Number of characters per code
	ExposeCodes   bool          // Echo generated codes in send-code responses
	SweepInterval time.Duration // How often expired codes are purged, 0 disables
	CodeRetention time.Duration // How long expired codes are kept before purging
}

type TokenConfig struct { //nolint:govet // fieldalignment not critical
	Secret string // HMAC secret for signing access tokens
	TTL    time.Duration
	Issuer string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type MailConfig struct { //nolint:govet // fieldalignment not critical
	Host     string // SMTP host, empty logs mails instead of sending
	Port     int
	Username string
	Password string
	TLS      string // none, starttls, tls
	From     string
	FromName string
	Template string // message ID prefix for subject and body
}

type AuditConfig struct {
	File string // Append-only log file, empty stores entries in the database
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            cmd.String("host"),
			Port:            int(cmd.Int("port")),
			BaseURL:         cmd.String("base-url"),
			MaxBodySize:     int(cmd.Int("max-body-size")),
			ShutdownTimeout: cmd.Duration("shutdown-timeout"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Auth: AuthConfig{
			ActivationTTL: time.Duration(cmd.Int("activation-ttl")) * time.Second,
			CodeLength:    int(cmd.Int("code-length")),
			ExposeCodes:   cmd.Bool("expose-codes"),
			SweepInterval: cmd.Duration("code-sweep-interval"),
			CodeRetention: cmd.Duration("code-retention"),
		},
		Token: TokenConfig{
			Secret: cmd.String("token-secret"),
			TTL:    cmd.Duration("token-ttl"),
			Issuer: cmd.String("token-issuer"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Mail: MailConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			TLS:      cmd.String("smtp-tls"),
			From:     cmd.String("mail-from"),
			FromName: cmd.String("mail-from-name"),
			Template: cmd.String("mail-template"),
		},
		Audit: AuditConfig{
			File: cmd.String("audit-file"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = cfg.Server.BaseURL
	}

	return cfg
}

// Validate reports settings that would make the service misbehave.
func (c *Config) Validate() error {
	if c.Auth.ActivationTTL <= 0 {
		return fmt.Errorf("activation-ttl must be positive, got %s", c.Auth.ActivationTTL)
	}
	if c.Auth.CodeRetention < 0 {
		return fmt.Errorf("code-retention must not be negative, got %s", c.Auth.CodeRetention)
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token-ttl must be positive, got %s", c.Token.TTL)
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		return fmt.Errorf("mail-from is required when smtp-host is set")
	}
	switch strings.ToLower(c.Mail.TLS) {
	case "", "none", "starttls", "tls":
	default:
		return fmt.Errorf("unknown smtp-tls mode: %s", c.Mail.TLS)
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	// Determine if TLS will be used
	useTLS := shouldUseTLS(mode, host)

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func sources(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: sources("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: sources("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL used in activation links",
			Sources: sources("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: sources("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   10 * time.Second,
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: sources("SHUTDOWN_TIMEOUT", "server.shutdown_timeout"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: sources("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: sources("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/magiclink.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: sources("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: sources("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: sources("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: sources("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: sources("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: sources("TLS_KEY_FILE", "tls.key_file"),
		},
		// Activation code flags
		&cli.IntFlag{
			Name:    "activation-ttl",
			Value:   300,
			Usage:   "Activation code lifetime in seconds",
			Sources: sources("ACTIVATION_LINK_EXPIRED_TIME_BY_SECONDS", "auth.activation_ttl"),
		},
		&cli.IntFlag{
			Name:    "code-length",
			Value:   40,
			Usage:   "Activation code length (minimum 32)",
			Sources: sources("CODE_LENGTH", "auth.code_length"),
		},
		&cli.BoolFlag{
			Name:    "expose-codes",
			Value:   true,
			Usage:   "Include generated activation codes in send-code responses",
			Sources: sources("EXPOSE_CODES", "auth.expose_codes"),
		},
		&cli.DurationFlag{
			Name:    "code-sweep-interval",
			Value:   time.Minute,
			Usage:   "Interval for purging expired activation codes (0 disables)",
			Sources: sources("CODE_SWEEP_INTERVAL", "auth.code_sweep_interval"),
		},
		&cli.DurationFlag{
			Name:    "code-retention",
			Value:   24 * time.Hour,
			Usage:   "How long expired activation codes are kept before purging",
			Sources: sources("CODE_RETENTION", "auth.code_retention"),
		},
		// Access token flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "Access token signing secret (auto-generated if empty in dev)",
			Sources: sources("TOKEN_SECRET", "token.secret"),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Access token lifetime",
			Sources: sources("TOKEN_TTL", "token.ttl"),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Usage:   "Access token issuer claim (defaults to base_url)",
			Sources: sources("TOKEN_ISSUER", "token.issuer"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: sources("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   86400, // matches the default token lifetime
			Usage:   "Session max age in seconds",
			Sources: sources("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: sources("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: sources("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// Mail flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (empty logs mails instead of sending them)",
			Sources: sources("SMTP_HOST", "mail.smtp_host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: sources("SMTP_PORT", "mail.smtp_port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: sources("SMTP_USERNAME", "mail.smtp_username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: sources("SMTP_PASSWORD", "mail.smtp_password"),
		},
		&cli.StringFlag{
			Name:    "smtp-tls",
			Value:   "starttls",
			Usage:   "SMTP TLS mode (none, starttls, tls)",
			Sources: sources("SMTP_TLS", "mail.smtp_tls"),
		},
		&cli.StringFlag{
			Name:    "mail-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address for activation mails",
			Sources: sources("MAIL_FROM_ADDRESS", "mail.from"),
		},
		&cli.StringFlag{
			Name:    "mail-from-name",
			Value:   "Portal API",
			Usage:   "Sender display name for activation mails",
			Sources: sources("MAIL_FROM_NAME", "mail.from_name"),
		},
		&cli.StringFlag{
			Name:    "mail-template",
			Value:   "login_link",
			Usage:   "Notification template identifier",
			Sources: sources("EMAIL_TEMPLATE_ID", "mail.template"),
		},
		// Audit flags
		&cli.StringFlag{
			Name:    "audit-file",
			Usage:   "Append email audit entries to this file instead of the database",
			Sources: sources("AUDIT_FILE", "audit.file"),
		},
	}
}
