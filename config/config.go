// Package config holds the bot's runtime settings. Values come from a JSON
// file, overridable by PAGOBOT_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	ApproverID           string            `json:"approverId" mapstructure:"approverId"`
	DatabasePath         string            `json:"databasePath" mapstructure:"databasePath"`
	RegistryBackend      string            `json:"registryBackend" mapstructure:"registryBackend"`
	RegistryFilePath     string            `json:"registryFilePath" mapstructure:"registryFilePath"`
	StatePath            string            `json:"statePath" mapstructure:"statePath"`
	BridgeURL            string            `json:"bridgeURL" mapstructure:"bridgeURL"`
	HTTPAddr             string            `json:"httpAddr" mapstructure:"httpAddr"`
	ReminderDelaySeconds int               `json:"reminderDelaySeconds" mapstructure:"reminderDelaySeconds"`
	ReminderHour         int               `json:"reminderHour" mapstructure:"reminderHour"`
	ReminderOffsets      []int             `json:"reminderOffsets" mapstructure:"reminderOffsets"`
	ProofStorage         string            `json:"proofStorage" mapstructure:"proofStorage"`
	ProofDir             string            `json:"proofDir" mapstructure:"proofDir"`
	S3Bucket             string            `json:"s3Bucket" mapstructure:"s3Bucket"`
	S3Region             string            `json:"s3Region" mapstructure:"s3Region"`
	S3Prefix             string            `json:"s3Prefix" mapstructure:"s3Prefix"`
	PaymentInstructions  map[string]string `json:"paymentInstructions,omitempty" mapstructure:"paymentInstructions"`
}

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	StorageLocal  = "local"
	StorageS3     = "s3"
)

var (
	cfg  = Defaults()
	mu   sync.RWMutex
	path = "./pagobot_config.json"
)

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		DatabasePath:         "./pagobot.db",
		RegistryBackend:      BackendSQLite,
		RegistryFilePath:     "./clients.json",
		StatePath:            "./pagobot_state.db",
		BridgeURL:            "ws://127.0.0.1:3000/bridge",
		HTTPAddr:             ":8080",
		ReminderDelaySeconds: 3,
		ReminderHour:         9,
		ReminderOffsets:      []int{0},
		ProofStorage:         StorageLocal,
		ProofDir:             "./proofs",
		S3Prefix:             "pagobot",
	}
}

// SetPath changes the config file location. Call before LoadConfig.
func SetPath(p string) {
	mu.Lock()
	defer mu.Unlock()
	path = p
}

func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return path
}

func newViper(file string) *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("approverId", d.ApproverID)
	v.SetDefault("databasePath", d.DatabasePath)
	v.SetDefault("registryBackend", d.RegistryBackend)
	v.SetDefault("registryFilePath", d.RegistryFilePath)
	v.SetDefault("statePath", d.StatePath)
	v.SetDefault("bridgeURL", d.BridgeURL)
	v.SetDefault("httpAddr", d.HTTPAddr)
	v.SetDefault("reminderDelaySeconds", d.ReminderDelaySeconds)
	v.SetDefault("reminderHour", d.ReminderHour)
	v.SetDefault("reminderOffsets", d.ReminderOffsets)
	v.SetDefault("proofStorage", d.ProofStorage)
	v.SetDefault("proofDir", d.ProofDir)
	v.SetDefault("s3Bucket", d.S3Bucket)
	v.SetDefault("s3Region", d.S3Region)
	v.SetDefault("s3Prefix", d.S3Prefix)
	v.SetEnvPrefix("PAGOBOT")
	v.AutomaticEnv()
	v.SetConfigFile(file)
	v.SetConfigType("json")
	return v
}

// LoadConfig reads the config file, applies environment overrides and
// defaults, and makes the result current.
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	applyDefaults(&loaded)
	cfg = loaded
	return cfg, nil
}

func applyDefaults(c *Config) {
	d := Defaults()
	if c.ReminderDelaySeconds <= 0 {
		c.ReminderDelaySeconds = d.ReminderDelaySeconds
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		c.ReminderHour = d.ReminderHour
	}
	if len(c.ReminderOffsets) == 0 {
		c.ReminderOffsets = d.ReminderOffsets
	}
	if c.RegistryBackend == "" {
		c.RegistryBackend = d.RegistryBackend
	}
	if c.ProofStorage == "" {
		c.ProofStorage = d.ProofStorage
	}
}

// Validate reports settings the bot cannot run with.
func (c Config) Validate() error {
	switch c.RegistryBackend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("unknown registryBackend %q", c.RegistryBackend)
	}
	switch c.ProofStorage {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3Bucket is required when proofStorage is s3")
		}
	default:
		return fmt.Errorf("unknown proofStorage %q", c.ProofStorage)
	}
	for _, o := range c.ReminderOffsets {
		if o < -31 || o > 31 {
			return fmt.Errorf("reminder offset %d out of range", o)
		}
	}
	return nil
}

func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	applyDefaults(&newCfg)
	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
