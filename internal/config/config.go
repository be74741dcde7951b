package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DB     *Postgres `yaml:"database"`
	RMQ    *RabbitMQ `yaml:"rabbitmq"`
	HTTP   *HTTP     `yaml:"http"`
	Stock  *Stock    `yaml:"stock"`
	Timers *Timers   `yaml:"timers"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     string `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

type RabbitMQ struct {
	User     string `yaml:"user" env:"RMQ_USER"`
	Password string `yaml:"password" env:"RMQ_PASSWORD"`
	Host     string `yaml:"host" env:"RMQ_HOST"`
	Port     string `yaml:"port" env:"RMQ_PORT"`
	VHost    string `yaml:"vhost" env:"RMQ_VHOST"`
}

func (r *RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		r.User, r.Password, r.Host, r.Port, r.VHost)
}

type HTTP struct {
	Port int `yaml:"port" env:"HTTP_PORT"`
}

// Stock points at the external stock-deduction collaborator. Leave the
// address empty to run without one.
type Stock struct {
	Address string `yaml:"address" env:"STOCK_ADDRESS"`
}

// Timers holds every tunable interval of the sync core. The expiry thresholds
// are configuration, not architectural constants.
type Timers struct {
	ResyncIntervalSec   int `yaml:"resync_interval_sec" env:"RESYNC_INTERVAL_SEC"`
	SweepIntervalSec    int `yaml:"sweep_interval_sec" env:"SWEEP_INTERVAL_SEC"`
	PaidServeAfterMin   int `yaml:"paid_serve_after_min" env:"PAID_SERVE_AFTER_MIN"`
	SuggestAfterMin     int `yaml:"suggest_after_min" env:"SUGGEST_AFTER_MIN"`
	ReconnectBackoffSec int `yaml:"reconnect_backoff_sec" env:"RECONNECT_BACKOFF_SEC"`
}

func (t *Timers) ResyncInterval() time.Duration {
	return time.Duration(t.ResyncIntervalSec) * time.Second
}

func (t *Timers) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalSec) * time.Second
}

func (t *Timers) PaidServeAfter() time.Duration {
	return time.Duration(t.PaidServeAfterMin) * time.Minute
}

func (t *Timers) SuggestAfter() time.Duration {
	return time.Duration(t.SuggestAfterMin) * time.Minute
}

func (t *Timers) ReconnectBackoff() time.Duration {
	return time.Duration(t.ReconnectBackoffSec) * time.Second
}

// Load reads the YAML config and applies environment overrides on top.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for _, target := range []any{cfg.DB, cfg.RMQ, cfg.HTTP, cfg.Stock, cfg.Timers} {
		if err := env.Parse(target); err != nil {
			return nil, fmt.Errorf("env overrides: %w", err)
		}
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DB: &Postgres{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Database: "comanda",
		},
		RMQ: &RabbitMQ{
			User:     "guest",
			Password: "guest",
			Host:     "localhost",
			Port:     "5672",
		},
		HTTP:  &HTTP{Port: 3000},
		Stock: &Stock{},
		Timers: &Timers{
			ResyncIntervalSec:   30,
			SweepIntervalSec:    60,
			PaidServeAfterMin:   30,
			SuggestAfterMin:     45,
			ReconnectBackoffSec: 5,
		},
	}
}
