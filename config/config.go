package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoanPolicy holds the lending rules applied by the loan service.
type LoanPolicy struct {
	IssueDays       int
	MaxBooksPerUser int
	FinePerDay      float64
}

// DefaultLoanPolicy 14 天借期，最多 3 本，每天罚 5.00
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{IssueDays: 14, MaxBooksPerUser: 3, FinePerDay: 5.00}
}

// Config 从环境变量读取
type Config struct {
	DBDriver          string
	DatabaseURL       string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr string
	RedisPwd  string

	Port             string
	WebOrigin        string
	SessionTTL       time.Duration
	RequestTimeout   time.Duration
	LoginMaxAttempts int
	LoginWindow      time.Duration
	AllowAdminSignup bool

	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminEmail    string
	BootstrapAdminFullName string

	Loans            LoanPolicy
	ReconcileOnStart bool

	LogLevel  string
	LogFormat string
}

// LoadEnv overlays variables from a .env file in the working directory, if one exists.
// Variables already present in the environment win.
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("load .env: %v", err)
	}
}

func Load() Config {
	def := DefaultLoanPolicy()
	return Config{
		DBDriver:          strings.ToLower(get("DB_DRIVER", "postgres")),
		DatabaseURL:       get("DATABASE_URL", postgresDSN()),
		SQLitePath:        get("SQLITE_PATH", "library.db"),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getSeconds("DB_CONN_MAX_LIFETIME_SECONDS", 30*time.Minute),

		RedisAddr: get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:  os.Getenv("REDIS_PASSWORD"),

		Port:             get("PORT", "3001"),
		WebOrigin:        get("WEB_ORIGIN", "http://localhost:3000"),
		SessionTTL:       getSeconds("SESSION_TTL_SECONDS", 24*time.Hour),
		RequestTimeout:   getSeconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second),
		LoginMaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 20),
		LoginWindow:      getSeconds("LOGIN_WINDOW_SECONDS", time.Minute),
		AllowAdminSignup: getBool("ALLOW_ADMIN_SIGNUP", false),

		BootstrapAdminUsername: strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_USERNAME")),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminEmail:    strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL")),
		BootstrapAdminFullName: get("BOOTSTRAP_ADMIN_FULL_NAME", "Administrator"),

		Loans: LoanPolicy{
			IssueDays:       getInt("ISSUE_DAYS", def.IssueDays),
			MaxBooksPerUser: getInt("MAX_BOOKS_PER_USER", def.MaxBooksPerUser),
			FinePerDay:      getFloat("FINE_PER_DAY", def.FinePerDay),
		},
		ReconcileOnStart: getBool("RECONCILE_ON_START", false),

		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "json"),
	}
}

// SecureCookies reports whether the web origin is served over https.
func (c Config) SecureCookies() bool { return strings.HasPrefix(c.WebOrigin, "https://") }

func postgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		get("DB_HOST", "127.0.0.1"),
		get("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		get("DB_NAME", "library"),
		get("DB_PORT", "5432"),
	)
}

func get(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(get(k, ""), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func getBool(k string, def bool) bool {
	b, err := strconv.ParseBool(get(k, ""))
	if err != nil {
		return def
	}
	return b
}

func getSeconds(k string, def time.Duration) time.Duration {
	n := getInt(k, 0)
	if n == 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
