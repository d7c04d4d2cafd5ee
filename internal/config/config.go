package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"

	"github.com/joho/godotenv" // godotenv seeds the environment from a local .env file
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and token lifetimes live here and are
// handed to the components that need them at construction time; nothing in
// the core reads the environment on its own.
type Config struct {
	Env            string        // application environment (e.g. "development", "production")
	Debug          bool          // debug mode; enables permissive CORS and debug logging
	Port           string        // HTTP port to listen on
	ServiceName    string        // name reported by the liveness endpoint
	LogLevel       string        // slog level name
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	DBWaitRetries  int           // readiness gate attempts before giving up
	DBWaitDelay    time.Duration // pause between readiness attempts
	JWTSecret      string        // secret used to sign JWTs
	JWTIssuer      string        // iss claim stamped on every token
	AccessTTL      time.Duration // access token lifetime
	RefreshTTL     time.Duration // refresh token lifetime
	BcryptCost     int           // bcrypt cost for password hashing
	AllowedOrigins []string      // CORS allow list outside debug mode
	Revocation     string        // revocation set backend: "sql" or "redis"
	RabbitMQURL    string        // broker for security events; empty disables publishing
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is read first when present;
// variables already set in the process environment win.  Required variables
// are enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine (containers inject vars directly)

	debug := envBool("APP_DEBUG", false)
	level := envStr("LOG_LEVEL", "info")
	if debug && os.Getenv("LOG_LEVEL") == "" {
		level = "debug"
	}

	db := LoadDB()
	return Config{
		Env:            envStr("APP_ENV", "development"),
		Debug:          debug,
		Port:           envStr("APP_PORT", "8000"),
		ServiceName:    envStr("SERVICE_NAME", "mosque-manager"),
		LogLevel:       level,
		DBUser:         db.User,
		DBPass:         db.Pass,
		DBHost:         db.Host,
		DBPort:         db.Port,
		DBName:         db.Name,
		DBWaitRetries:  db.WaitRetries,
		DBWaitDelay:    db.WaitDelay,
		JWTSecret:      must("JWT_SECRET"),
		JWTIssuer:      envStr("JWT_ISSUER", "mosque-manager"),
		AccessTTL:      envDur("ACCESS_TOKEN_TTL", 8*time.Hour),
		RefreshTTL:     envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		Revocation:     strings.ToLower(envStr("REVOCATION_BACKEND", "sql")),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
	}
}

// DBConfig is the subset of the configuration needed by commands that only
// talk to the database (waitfordb, flushtokens).  It does not require
// JWT_SECRET.
type DBConfig struct {
	User, Pass, Host, Port, Name string
	WaitRetries                  int
	WaitDelay                    time.Duration
}

// LoadDB reads the database variables, seeding from .env like Load.
func LoadDB() DBConfig {
	_ = godotenv.Load()
	return DBConfig{
		User:        must("DB_USER"),
		Pass:        os.Getenv("DB_PASS"), // empty allowed
		Host:        must("DB_HOST"),
		Port:        envStr("DB_PORT", "3306"),
		Name:        must("DB_NAME"),
		WaitRetries: envInt("DB_WAIT_MAX_RETRIES", 30),
		WaitDelay:   envDur("DB_WAIT_DELAY", 2*time.Second),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
