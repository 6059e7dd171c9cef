package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = "local"
	defaultConfigDir     = ".contactsync"
	defaultAccountName   = "contactsync"
	defaultAccountType   = "contactsync"
	defaultProfile       = "full"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	ConfigDir     string `mapstructure:"config_dir"`
	TokenPath     string `mapstructure:"token_path"`
	StatePath     string `mapstructure:"state_path"`
	DatabasePath  string `mapstructure:"database_path"`
	// AddressBookPath JSON-файл адресной книги устройства
	AddressBookPath      string   `mapstructure:"address_book_path"`
	AccountName          string   `mapstructure:"account_name"`
	AccountType          string   `mapstructure:"account_type"`
	ExternalAccountTypes []string `mapstructure:"external_account_types"`
	DeviceProfile        string   `mapstructure:"device_profile"`
	SupportsAccounts     bool     `mapstructure:"supports_accounts"`

	PageSize        int           `mapstructure:"page_size"`
	NativeBatchSize int           `mapstructure:"native_batch_size"`
	Debounce        time.Duration `mapstructure:"debounce_seconds"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout_seconds"`

	Token string `mapstructure:"token"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom читает переменные из envFile; при пустом пути ищется .env в текущем и родительском каталоге.
// Уже заданные переменные окружения не перезаписываются.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("ошибка загрузки %s: %w", envFile, err)
		}
	} else {
		envPath := ".env"
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = "../.env"
		}
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("ACCOUNT_NAME", defaultAccountName)
	v.SetDefault("ACCOUNT_TYPE", defaultAccountType)
	v.SetDefault("DEVICE_PROFILE", defaultProfile)
	v.SetDefault("SUPPORTS_ACCOUNTS", true)
	v.SetDefault("PAGE_SIZE", 15)
	v.SetDefault("NATIVE_BATCH_SIZE", 50)
	v.SetDefault("DEBOUNCE_SECONDS", 30)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 60)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	inDir := func(key, name string) string {
		if p := v.GetString(key); p != "" {
			return p
		}
		return filepath.Join(configDir, name)
	}

	cfg := &Config{
		Env:                  v.GetString("APP_ENV"),
		ServerAddress:        v.GetString("SERVER_ADDRESS"),
		EnableTLS:            v.GetBool("ENABLE_TLS"),
		ConfigDir:            configDir,
		TokenPath:            inDir("TOKEN_PATH", "token"),
		StatePath:            inDir("STATE_PATH", "state.json"),
		DatabasePath:         inDir("DATABASE_PATH", "contacts.db"),
		AddressBookPath:      inDir("ADDRESS_BOOK_PATH", "addressbook.json"),
		AccountName:          v.GetString("ACCOUNT_NAME"),
		AccountType:          v.GetString("ACCOUNT_TYPE"),
		ExternalAccountTypes: splitList(v.GetString("EXTERNAL_ACCOUNT_TYPES")),
		DeviceProfile:        v.GetString("DEVICE_PROFILE"),
		SupportsAccounts:     v.GetBool("SUPPORTS_ACCOUNTS"),
		PageSize:             v.GetInt("PAGE_SIZE"),
		NativeBatchSize:      v.GetInt("NATIVE_BATCH_SIZE"),
		Debounce:             time.Duration(v.GetInt("DEBOUNCE_SECONDS")) * time.Second,
		RequestTimeout:       time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		Token:                v.GetString("TOKEN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size должен быть положительным: %d", c.PageSize)
	}
	if c.NativeBatchSize <= 0 {
		return fmt.Errorf("native_batch_size должен быть положительным: %d", c.NativeBatchSize)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce_seconds должен быть положительным")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout_seconds должен быть положительным")
	}
	if c.SupportsAccounts && (c.AccountName == "" || c.AccountType == "") {
		return fmt.Errorf("account_name и account_type обязательны для хранилища с учетными записями")
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if strings.Contains(c.ServerAddress, "://") {
		return strings.TrimRight(c.ServerAddress, "/")
	}
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
