// Package config builds service configuration from the environment so main
// stays lean. Identities, asset ids, the lock duration, and the initial policy
// text are the deployment-time surface of the portfolio - everything else is
// derived at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"govvault/pkg/domain"
)

// Defaults for the economic parameters. Overridable through the environment
// for test deployments.
const (
	DefaultMessageFee    = 10 * domain.Unit
	DefaultLockDuration  = 90 * 24 * time.Hour
	DefaultMaxPolicySize = 10_000
)

// Server captures the full deployment configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// Identities
	Owner            domain.Address
	Agent            domain.Address
	RevenueRecipient domain.Address
	VaultCustody     domain.Address

	// Assets
	FeeAsset        domain.Asset
	RedemptionAsset domain.Asset

	// Economic parameters
	MessageFee    domain.Amount
	LockDuration  time.Duration
	MaxPolicySize int
	InitialPolicy string

	// Event stream / cache
	KafkaBrokers   string
	KafkaTopic     string
	RedisURL       string
	PolicyCacheTTL time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:            envOr("GOVVAULT_ADDR", ":8080"),
		JWTSigningKey:   os.Getenv("GOVVAULT_JWT_SIGNING_KEY"),
		FeeAsset:        domain.Asset(envOr("GOVVAULT_FEE_ASSET", "USDC")),
		RedemptionAsset: domain.Asset(envOr("GOVVAULT_REDEMPTION_ASSET", "USDC")),
		MessageFee:      DefaultMessageFee,
		LockDuration:    DefaultLockDuration,
		MaxPolicySize:   DefaultMaxPolicySize,
		InitialPolicy:   os.Getenv("GOVVAULT_INITIAL_POLICY"),
		KafkaBrokers:    os.Getenv("GOVVAULT_KAFKA_BROKERS"),
		KafkaTopic:      envOr("GOVVAULT_KAFKA_TOPIC", "govvault.events"),
		RedisURL:        os.Getenv("GOVVAULT_REDIS_URL"),
		PolicyCacheTTL:  30 * time.Second,
	}

	var err error
	if cfg.Owner, err = requiredAddress("GOVVAULT_OWNER"); err != nil {
		return Server{}, err
	}
	if cfg.Agent, err = requiredAddress("GOVVAULT_AGENT"); err != nil {
		return Server{}, err
	}
	if cfg.RevenueRecipient, err = requiredAddress("GOVVAULT_REVENUE_RECIPIENT"); err != nil {
		return Server{}, err
	}
	if cfg.VaultCustody, err = requiredAddress("GOVVAULT_VAULT_CUSTODY"); err != nil {
		return Server{}, err
	}

	if v := os.Getenv("GOVVAULT_MESSAGE_FEE"); v != "" {
		fee, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Server{}, fmt.Errorf("GOVVAULT_MESSAGE_FEE: %w", err)
		}
		cfg.MessageFee = domain.Amount(fee)
	}
	if v := os.Getenv("GOVVAULT_LOCK_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Server{}, fmt.Errorf("GOVVAULT_LOCK_DURATION: %w", err)
		}
		cfg.LockDuration = d
	}
	if v := os.Getenv("GOVVAULT_MAX_POLICY_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Server{}, fmt.Errorf("GOVVAULT_MAX_POLICY_SIZE: %w", err)
		}
		cfg.MaxPolicySize = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requiredAddress(key string) (domain.Address, error) {
	v := os.Getenv(key)
	if v == "" {
		return domain.Address{}, fmt.Errorf("%s is required", key)
	}
	addr, err := domain.ParseAddress(v)
	if err != nil {
		return domain.Address{}, fmt.Errorf("%s: %w", key, err)
	}
	if addr.IsZero() {
		return domain.Address{}, fmt.Errorf("%s: the null identity is not a valid deployment identity", key)
	}
	return addr, nil
}

// RedisConfig carries tuning for the optional policy document cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis returns the redis configuration with pool defaults applied.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
