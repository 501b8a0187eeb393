package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	MediaConfig struct {
		Root          string
		URL           string
		MaxUploadSize int64
	}

	RedisConfig struct {
		URL string
	}

	// RateLimitConfig sets the number of attempts allowed per client IP within Window.
	RateLimitConfig struct {
		Login         int
		Register      int
		PasswordReset int
		Window        time.Duration
	}

	Config struct {
		AppName         string
		Build           string
		Env             string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		TimeZone        string
		RollbarToken    string
		SendgridApiKey  string

		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Media     MediaConfig
		Redis     RedisConfig
		RateLimit RateLimitConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DefaultFromEmail returns the parsed sender address; it falls back to the raw value on parse failure.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func (conf *Config) Site() Site {
	return Site{Name: conf.AppName, BaseURL: conf.FrontendBaseURL}
}

// Location returns the institute's local time zone, used for display dates (CSV export, PDFs, emails).
func (conf *Config) Location() *time.Location {
	loc, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig reads the configuration from the environment.
// Variables are prefixed by the current ENV (DEV, TEST, QA, PROD), e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		WorkDir:          wd,
		TimeZone:         v.GetString("timeZone"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Media: MediaConfig{
			Root:          v.GetString("media.root"),
			URL:           v.GetString("media.url"),
			MaxUploadSize: v.GetInt64("media.maxUploadSize"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		RateLimit: RateLimitConfig{
			Login:         v.GetInt("rateLimit.login"),
			Register:      v.GetInt("rateLimit.register"),
			PasswordReset: v.GetInt("rateLimit.passwordReset"),
			Window:        v.GetDuration("rateLimit.window"),
		},
	}
	if !filepath.IsAbs(conf.Media.Root) {
		conf.Media.Root = filepath.Join(wd, conf.Media.Root)
	}
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Institut de Formation")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "lw9#c2+t0x!jd4f%k^8z&e1q(ra=7um@)vb3n$y6h*5s_go")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("timeZone", "Africa/Abidjan")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "institut")
	v.SetDefault("database.user", "institut")
	v.SetDefault("database.password", "institut")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("media.root", "media")
	v.SetDefault("media.url", "/media/")
	v.SetDefault("media.maxUploadSize", 5*1024*1024)

	v.SetDefault("redis.url", "")

	// attempts per client IP per window
	v.SetDefault("rateLimit.login", 10)
	v.SetDefault("rateLimit.register", 20)
	v.SetDefault("rateLimit.passwordReset", 5)
	v.SetDefault("rateLimit.window", 15*time.Minute)
}

// String hides secrets; used when printing the running config.
func (conf *Config) String() string {
	return fmt.Sprintf(
		"env=%s debug=%t server=%s db=%s/%s media=%s redis=%t",
		conf.Env, conf.Debug, conf.Server.Address(), conf.Database.Address(), conf.Database.Name,
		conf.Media.Root, conf.Redis.URL != "",
	)
}
