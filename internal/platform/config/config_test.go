package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govvault/pkg/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GOVVAULT_OWNER", "0x0a00000000000000000000000000000000000001")
	t.Setenv("GOVVAULT_AGENT", "0x0b00000000000000000000000000000000000002")
	t.Setenv("GOVVAULT_REVENUE_RECIPIENT", "0xd000000000000000000000000000000000000003")
	t.Setenv("GOVVAULT_VAULT_CUSTODY", "0xc000000000000000000000000000000000000004")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, domain.Asset("USDC"), cfg.FeeAsset)
	assert.Equal(t, domain.Amount(DefaultMessageFee), cfg.MessageFee)
	assert.Equal(t, DefaultLockDuration, cfg.LockDuration)
	assert.Equal(t, DefaultMaxPolicySize, cfg.MaxPolicySize)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOVVAULT_MESSAGE_FEE", "5000000")
	t.Setenv("GOVVAULT_LOCK_DURATION", "24h")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, domain.Amount(5_000_000), cfg.MessageFee)
	assert.Equal(t, 24*time.Hour, cfg.LockDuration)
}

func TestFromEnvRequiresIdentities(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOVVAULT_AGENT", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOVVAULT_AGENT")
}

// Identities must be real accounts: the null address would make every
// surcharge mint fail and is never a deployment identity.
func TestFromEnvRejectsNullIdentity(t *testing.T) {
	for _, key := range []string{
		"GOVVAULT_OWNER",
		"GOVVAULT_AGENT",
		"GOVVAULT_REVENUE_RECIPIENT",
		"GOVVAULT_VAULT_CUSTODY",
	} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "0x0000000000000000000000000000000000000000")

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
