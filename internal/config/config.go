// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string                   `yaml:"env" env-default:"local"`
	StorageConnectionString string                   `yaml:"storage_connection_string"`
	MigrationsPath          string                   `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Telegram                `yaml:"telegram"`
	Robokassa               `yaml:"robokassa"`
	Periods                 `yaml:"periods"`
	AdminToken              `yaml:"admin_token"`
	Channels                map[string]ChannelConfig `yaml:"channels"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Telegram структура для доступа к Bot API
type Telegram struct {
	BotToken   string        `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	APIBaseURL string        `yaml:"api_base_url" env-default:"https://api.telegram.org"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
}

// Robokassa общие настройки платёжного шлюза. Учётные данные мерчанта
// задаются на канал (см. ChannelConfig).
type Robokassa struct {
	BaseURL  string `yaml:"base_url" env-default:"https://auth.robokassa.ru/Merchant/Index.aspx"`
	TestMode bool   `yaml:"test_mode" env-default:"false"`
}

// Periods длительности подписочных периодов и интервал фоновых проходов
type Periods struct {
	PaidDays         int           `yaml:"paid_days" env-default:"30"`
	TrialDays        int           `yaml:"trial_days" env-default:"14"`
	ReminderLeadDays int           `yaml:"reminder_lead_days" env-default:"3"`
	SweepInterval    time.Duration `yaml:"sweep_interval" env-default:"1h"`
}

// AdminToken настройки JWT для админских операций
type AdminToken struct {
	SecretKey string        `yaml:"secret_key" env:"ADMIN_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// ChannelConfig настройки одного платного канала: чат, цена и учётные
// данные мерчанта в платёжном шлюзе
type ChannelConfig struct {
	ChatID        string  `yaml:"chat_id"`
	Price         float64 `yaml:"price"`
	Description   string  `yaml:"description"`
	MerchantLogin string  `yaml:"merchant_login"`
	Password1     string  `yaml:"password1"`
	Password2     string  `yaml:"password2"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
