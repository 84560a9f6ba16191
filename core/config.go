package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		WorkDir                   string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		RateLimit RateLimitConfig
		School    SchoolConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		CORSAllowedOrigins        []string
		CookieName                string
		CookieSecure              bool
	}

	DatabaseConfig struct {
		Driver        string // postgres | memory
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	RateLimitConfig struct {
		LoginMax         int
		PasswordResetMax int
		Window           time.Duration
	}

	SchoolConfig struct {
		Timezone     string
		AcademicYear string // pins the current term when set
		Semester     int
	}
)

func (db DatabaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

// Location returns the school's time zone, falling back to UTC.
func (s SchoolConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("app_name", "Shule")
	v.SetDefault("build", "develop")
	v.SetDefault("secret_key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug_host", ":4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("server.cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("server.cookie_name", "shule_session")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "shule")
	v.SetDefault("database.user", "shule")
	v.SetDefault("database.password", "shule")
	v.SetDefault("database.disable_tls", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("rate_limit.login_max", 10)
	v.SetDefault("rate_limit.password_reset_max", 3)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("school.timezone", "UTC")
}

// NewConfig loads the configuration from the environment
// (prefixed by the ENV name) and the optional `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()
	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	appName := v.GetString("app_name")
	return &Config{
		AppName:                   appName,
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail:          mail.Address{Name: appName, Address: v.GetString("default_from_email")},
		SendgridApiKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		WorkDir:                   workDir,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debug_host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			ReadTimeout:               v.GetDuration("server.read_timeout"),
			WriteTimeout:              v.GetDuration("server.write_timeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
			CORSAllowedOrigins:        splitList(v.GetString("server.cors_allowed_origins")),
			CookieName:                v.GetString("server.cookie_name"),
			CookieSecure:              v.GetBool("server.cookie_secure"),
		},
		Database: DatabaseConfig{
			Driver:        v.GetString("database.driver"),
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
			MaxOpenConns:  v.GetInt("database.max_open_conns"),
			MaxIdleConns:  v.GetInt("database.max_idle_conns"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			LoginMax:         v.GetInt("rate_limit.login_max"),
			PasswordResetMax: v.GetInt("rate_limit.password_reset_max"),
			Window:           v.GetDuration("rate_limit.window"),
		},
		School: SchoolConfig{
			Timezone:     v.GetString("school.timezone"),
			AcademicYear: v.GetString("school.academic_year"),
			Semester:     v.GetInt("school.semester"),
		},
	}
}

// NewTestConfig returns a deterministic Config for tests; the environment is not read.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "Shule",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Shule", Address: "noreply@localhost"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			CookieName:                "shule_session",
		},
		Database:  DatabaseConfig{Driver: "memory"},
		RateLimit: RateLimitConfig{LoginMax: 5, PasswordResetMax: 2, Window: time.Minute},
		School:    SchoolConfig{Timezone: "UTC", AcademicYear: "2024/2025", Semester: 2},
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
