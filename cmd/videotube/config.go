package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/videotube/internal/service/ratelimit"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultCookieSameSite = "strict"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the videotube service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis for login throttle. Throttle disabled if empty
	RedisURL string

	// Secrets to sign access and refresh tokens. Required, must differ
	AccessSecret  string
	RefreshSecret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Auth cookies attributes
	CookieSameSite string
	CookieInsecure bool

	// Origins allowed to call API with credentials. Same origin only if empty
	CORSOrigins []string

	// Failed logins allowed per cooldown window
	LoginMaxAttempts int
	LoginCooldown    time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		AccessTTL:        tokenmanager.DefaultAccessTokenTTL,
		RefreshTTL:       tokenmanager.DefaultRefreshTokenTTL,
		CookieSameSite:   defaultCookieSameSite,
		LoginMaxAttempts: ratelimit.DefaultMaxAttempts,
		LoginCooldown:    ratelimit.DefaultCooldown,
		Environment:      defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = time.ParseDuration(value)
			}
			return err
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.Atoi(value)
			}
			return err
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.ParseBool(value)
			}
			return err
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"REDIS_URL":            setString(&c.RedisURL),
		"ACCESS_TOKEN_SECRET":  setString(&c.AccessSecret),
		"REFRESH_TOKEN_SECRET": setString(&c.RefreshSecret),
		"ACCESS_TOKEN_EXPIRY":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_EXPIRY": setDuration(&c.RefreshTTL),
		"COOKIE_SAMESITE":      setString(&c.CookieSameSite),
		"COOKIE_INSECURE":      setBool(&c.CookieInsecure),
		"CORS_ORIGIN":          setList(&c.CORSOrigins),
		"LOGIN_MAX_ATTEMPTS":   setInt(&c.LoginMaxAttempts),
		"LOGIN_COOLDOWN":       setDuration(&c.LoginCooldown),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("videotube", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL for login throttle")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token secret")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token secret")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.CookieSameSite, "cookie-samesite", c.CookieSameSite, "Auth cookies SameSite (strict, lax)")
	fs.BoolVar(&c.CookieInsecure, "cookie-insecure", c.CookieInsecure, "Send auth cookies over plain http")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origin", c.CORSOrigins, "Allowed CORS origins")
	fs.IntVar(&c.LoginMaxAttempts, "login-attempts", c.LoginMaxAttempts, "Failed logins allowed per cooldown")
	fs.DurationVar(&c.LoginCooldown, "login-cooldown", c.LoginCooldown, "Failed logins window")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate checks options that have no sensible default
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		errs = append(errs, errors.New("access and refresh secrets are required"))
	} else if c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if _, err := c.SameSite(); err != nil {
		errs = append(errs, err)
	}
	// Credentialed CORS must name every origin
	if slices.ContainsFunc(c.CORSOrigins, func(o string) bool { return strings.Contains(o, "*") }) {
		errs = append(errs, errors.New("wildcard CORS origins are not allowed"))
	}
	if c.LoginMaxAttempts <= 0 || c.LoginCooldown <= 0 {
		errs = append(errs, errors.New("login attempts and cooldown must be positive"))
	}

	return errors.Join(errs...)
}

// SameSite mode of auth cookies. None is not allowed
func (c *Config) SameSite() (http.SameSite, error) {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	default:
		return 0, fmt.Errorf("unsupported cookie SameSite %q, expected strict or lax", c.CookieSameSite)
	}
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
