package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Server struct {
		Port int
	}
	Log struct {
		Level string
	}
	Scheduler struct {
		IntervalSeconds  int
		StalenessMinutes int
		MaxParallel      int
	}
	Alert struct {
		Chat struct {
			Token   string
			Channel string
		}
		Email struct {
			SMTPHost    string
			SMTPPort    int
			From        string
			Password    string
			ToReceivers []string
		}
		Webhook struct {
			URL            string
			TimeoutSeconds int
		}
	}
}

// LoadConfig loads the configuration from config.yaml, falling back to
// defaults when no file is present.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/pulsewatch")

	viper.SetDefault("database.path", "data/pulsewatch.db")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("scheduler.intervalseconds", 60)
	viper.SetDefault("scheduler.stalenessminutes", 10)
	viper.SetDefault("scheduler.maxparallel", 8)
	viper.SetDefault("alert.webhook.timeoutseconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Scheduler.StalenessMinutes) * time.Minute
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Alert.Webhook.TimeoutSeconds) * time.Second
}
