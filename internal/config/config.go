package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const devSecret = "supersecret-dev-key"

var ErrInsecureSecret = errors.New("AUTH_HMAC_SECRET must be set in online mode")

type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"http_addr"`

	DBDriver string `mapstructure:"db_driver"` // sqlite|postgres
	DBDSN    string `mapstructure:"db_dsn"`
	DocStore string `mapstructure:"doc_store"` // sql|memory
	SiteID   string `mapstructure:"site_id"`   // event journal site; random when empty

	AuthHMACSecret string `mapstructure:"auth_hmac_secret"`
	AdminUser      string `mapstructure:"admin_user"`
	AdminPassHash  string `mapstructure:"admin_pass_hash"` // bcrypt

	CORSOrigins []string `mapstructure:"-"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	ProgressFlushInterval time.Duration `mapstructure:"progress_flush_interval"`
	SessionIdleTimeout    time.Duration `mapstructure:"session_idle_timeout"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads defaults, an optional config.yaml and the environment, in
// increasing priority.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("doc_store", "sql")
	v.SetDefault("site_id", "")
	v.SetDefault("auth_hmac_secret", devSecret)
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass_hash", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")
	v.SetDefault("cors_origins_online", "https://quiz.mindengage.ai")
	v.SetDefault("cors_origins_offline", "http://localhost:3000,http://localhost:3010")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("progress_flush_interval", "5s")
	v.SetDefault("session_idle_timeout", "30s")
	v.SetDefault("shutdown_timeout", "15s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range []string{
		"mode", "http_addr", "db_driver", "db_dsn", "doc_store", "site_id",
		"auth_hmac_secret", "admin_user", "admin_pass_hash",
		"cors_origins", "cors_origins_online", "cors_origins_offline",
		"log_level", "log_file", "progress_flush_interval", "session_idle_timeout", "shutdown_timeout",
	} {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Mode {
	case ModeOnline, ModeOffline:
	default:
		return Config{}, fmt.Errorf("unknown MODE %q", cfg.Mode)
	}
	if cfg.Mode == ModeOnline && cfg.AuthHMACSecret == devSecret {
		return Config{}, ErrInsecureSecret
	}

	origins := v.GetString("cors_origins")
	if origins == "" {
		origins = v.GetString("cors_origins_" + string(cfg.Mode))
	}
	cfg.CORSOrigins = splitCSV(origins)
	return cfg, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
