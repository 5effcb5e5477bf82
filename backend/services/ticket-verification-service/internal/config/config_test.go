package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

func testSecrets(t *testing.T) (map[string]string, map[string]string) {
	t.Helper()
	_, priv, err := verification.GenerateKeypair()
	require.NoError(t, err)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	app := map[string]string{
		"DB_URL":                   "postgres://user:pw@db:5432/ticketland",
		"REDIS_HOSTS":              "redis-a:6379,redis-b:6379,redis-c:6379",
		"REDIS_PASSWORD":           "pw",
		"LEDGER_RPC_URL":           "https://api.mainnet-beta.solana.com",
		"TICKET_VERIFIER_PRIV_KEY": verification.EncodePrivateKey(priv),
	}
	shared := map[string]string{
		"GATE_JWT_PUBLIC_KEY_BASE64": base64.StdEncoding.EncodeToString(pubPEM),
	}
	return app, shared
}

func TestBuild(t *testing.T) {
	app, shared := testSecrets(t)

	cfg, err := Build(app, shared, Flags{LedgerBackend: "SUI", CORSHighSecurity: true, AttendanceMarkerTTLHours: 48})
	require.NoError(t, err)
	assert.Equal(t, "sui", cfg.LDFlag_LedgerBackend)
	assert.Equal(t, 48*time.Hour, cfg.LDFlag_AttendanceMarkerTTL)
	assert.True(t, cfg.LDFlag_CORSHighSecurity)
	assert.Equal(t, app["REDIS_HOSTS"], cfg.RedisHosts)
	assert.NotNil(t, cfg.GatePublicKey)
	assert.Len(t, cfg.VerifierPrivateKey, 64)

	cfg, err = Build(app, shared, Flags{})
	require.NoError(t, err)
	assert.Equal(t, "solana", cfg.LDFlag_LedgerBackend)
	assert.Zero(t, cfg.LDFlag_AttendanceMarkerTTL)
}

func TestBuild_Errors(t *testing.T) {
	app, shared := testSecrets(t)

	missing := map[string]string{"DB_URL": app["DB_URL"]}
	_, err := Build(missing, shared, Flags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_HOSTS")

	badKey := map[string]string{}
	for k, v := range app {
		badKey[k] = v
	}
	badKey["TICKET_VERIFIER_PRIV_KEY"] = "abc"
	_, err = Build(badKey, shared, Flags{})
	assert.ErrorIs(t, err, verification.ErrInvalidKey)

	_, err = Build(app, map[string]string{}, Flags{})
	assert.Error(t, err)

	_, err = Build(app, shared, Flags{LedgerBackend: "ethereum"})
	assert.Error(t, err)
}
