package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		// Empty DSN runs the service on in-memory stores.
		DSN            string
		MigrationsDir  string `mapstructure:"migrations_dir"`
		SkipMigrations bool   `mapstructure:"skip_migrations"`
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Kafka struct {
		Brokers []string
		Topic   string
		// Event types contain dots, which viper treats as key separators, so
		// per-event topics are a list rather than a map.
		Routes []KafkaRoute
	} `mapstructure:"kafka"`

	Outbox struct {
		Interval  time.Duration
		BatchSize int `mapstructure:"batch_size"`
	} `mapstructure:"outbox"`

	Platform struct {
		AdminToken string `mapstructure:"admin_token"`
	} `mapstructure:"platform"`

	// Settings seed the registry on first start; a stored registry wins.
	Settings settings.Params `mapstructure:"settings"`
}

type KafkaRoute struct {
	Event string
	Topic string
}

func (c Config) KafkaTopicByEvent() map[string]string {
	out := make(map[string]string, len(c.Kafka.Routes))
	for _, r := range c.Kafka.Routes {
		out[r.Event] = r.Topic
	}
	return out
}

// Load reads path, then lets APP_* variables override it. A .env file in the
// working directory is loaded into the environment first when present.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("platform.admin_token", "")
	v.SetDefault("postgres.migrations_dir", "migrations")
	v.SetDefault("kafka.topic", "podvest.events")
	v.SetDefault("outbox.interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("settings.max_immediate_unlock_fraction", 200)
	v.SetDefault("settings.min_vesting_duration", 30*24*time.Hour.Milliseconds())
	v.SetDefault("settings.min_subscription_duration", 24*time.Hour.Milliseconds())
	v.SetDefault("settings.pod_exit_fee", 50)
	v.SetDefault("settings.pod_exit_small_fee", 100)
	v.SetDefault("settings.small_fee_duration", 7*24*time.Hour.Milliseconds())
	v.SetDefault("settings.subscription_cancel_fee", 1)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Platform.AdminToken == "" {
		return c, errors.New("config: platform.admin_token is required")
	}
	return c, nil
}
