package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// Config holds every knob the oracle reads from the environment.
type Config struct {
	DashdHost     string
	DashdPort     string
	DashdUser     string
	DashdPassword string
	DashdTimeout  time.Duration

	Network            string
	IdentityID         string
	IdentityPrivateKey string
	ContractID         string

	MySQLDSN string
	RedisURL string

	ProposalInterval   time.Duration
	VoteInterval       time.Duration
	MasternodeInterval time.Duration

	RetryAttempts int
	RetryDelay    time.Duration

	HealthPort        string
	HealthEnabled     bool
	BootstrapContract bool

	LogLevel string
}

// Load reads the environment and validates required fields. Startup
// aborts on the first invalid value.
func Load() (Config, error) {
	cfg := Config{
		DashdHost:          getenv("DASHD_HOST", "127.0.0.1"),
		DashdPort:          getenv("DASHD_PORT", "9998"),
		DashdUser:          os.Getenv("DASHD_RPC_USER"),
		DashdPassword:      os.Getenv("DASHD_RPC_PASSWORD"),
		Network:            getenv("NETWORK", "mainnet"),
		IdentityID:         os.Getenv("IDENTITY_ID"),
		IdentityPrivateKey: os.Getenv("IDENTITY_PRIVATE_KEY"),
		ContractID:         os.Getenv("CONTRACT_ID"),
		MySQLDSN:           os.Getenv("MYSQL_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		HealthPort:         getenv("HEALTH_PORT", "8080"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	for name, val := range map[string]string{
		"DASHD_RPC_USER":       cfg.DashdUser,
		"DASHD_RPC_PASSWORD":   cfg.DashdPassword,
		"IDENTITY_ID":          cfg.IdentityID,
		"IDENTITY_PRIVATE_KEY": cfg.IdentityPrivateKey,
		"CONTRACT_ID":          cfg.ContractID,
		"MYSQL_DSN":            cfg.MySQLDSN,
	} {
		if val == "" {
			return Config{}, fmt.Errorf("config: %s is not set", name)
		}
	}

	var err error
	if cfg.DashdTimeout, err = getenvMS("DASHD_RPC_TIMEOUT_MS", 30000); err != nil {
		return Config{}, err
	}
	if cfg.ProposalInterval, err = getenvMS("PROPOSAL_SYNC_INTERVAL_MS", 300000); err != nil {
		return Config{}, err
	}
	if cfg.VoteInterval, err = getenvMS("VOTE_SYNC_INTERVAL_MS", 300000); err != nil {
		return Config{}, err
	}
	if cfg.MasternodeInterval, err = getenvMS("MASTERNODE_SYNC_INTERVAL_MS", 3600000); err != nil {
		return Config{}, err
	}
	if cfg.RetryDelay, err = getenvMS("RETRY_DELAY_MS", 5000); err != nil {
		return Config{}, err
	}
	if cfg.RetryAttempts, err = getenvInt("RETRY_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.HealthEnabled, err = getenvBool("HEALTH_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.BootstrapContract, err = getenvBool("PLATFORM_BOOTSTRAP_CONTRACT", true); err != nil {
		return Config{}, err
	}

	if err := checkBase58ID("IDENTITY_ID", cfg.IdentityID); err != nil {
		return Config{}, err
	}
	if err := checkBase58ID("CONTRACT_ID", cfg.ContractID); err != nil {
		return Config{}, err
	}
	key, err := hex.DecodeString(strings.TrimPrefix(cfg.IdentityPrivateKey, "0x"))
	if err != nil {
		return Config{}, fmt.Errorf("config: IDENTITY_PRIVATE_KEY is not hex: %w", err)
	}
	if len(key) != 32 {
		return Config{}, fmt.Errorf("config: IDENTITY_PRIVATE_KEY must be 32 bytes, got %d", len(key))
	}

	return cfg, nil
}

// DashdURL returns the node endpoint for the JSON-RPC client.
func (c Config) DashdURL() string {
	return "http://" + c.DashdHost + ":" + c.DashdPort
}

func checkBase58ID(name, val string) error {
	raw, err := base58.Decode(val)
	if err != nil {
		return fmt.Errorf("config: %s is not base58: %w", name, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("config: %s must decode to 32 bytes, got %d", name, len(raw))
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvMS(key string, def int) (time.Duration, error) {
	n, err := getenvInt(key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
