package config

import (
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

type Config struct {
	OrganizationName           string
	AppName                    string
	AppPort                    string
	AppUrl                     string
	DBUrl                      string
	RedisHosts                 string
	RedisPassword              string
	LedgerRPCURL               string
	TicketProgramID            string
	VerifierPrivateKey         ed25519.PrivateKey
	GatePublicKey              *rsa.PublicKey
	UniqueRunNumber            string
	UniqueRunnerID             string
	LDFlag_UsingIsolatedSchema bool
	LDFlag_LedgerBackend       string
	LDFlag_CORSHighSecurity    bool
	LDFlag_AttendanceMarkerTTL time.Duration
}

const (
	OrganizationName    = utils.OrganizationName
	LDConnectionTimeout = 5 * time.Second
)

var (
	AppName             string
	UniqueRunNumber     string
	UniqueRunnerID      string
	LDServerContextKey  string
	LDServerContextKind string
)

// Flags is the subset of LaunchDarkly state the service reads at boot.
type Flags struct {
	UsingIsolatedSchema      bool
	LedgerBackend            string
	CORSHighSecurity         bool
	AttendanceMarkerTTLHours int
}

func LoadConfig() *Config {
	if AppName == "" {
		utils.Logger.Fatal("AppName ldflag missing")
	}
	if UniqueRunNumber == "" {
		utils.Logger.Fatal("UniqueRunNumber ldflag missing")
	}
	if UniqueRunnerID == "" {
		utils.Logger.Fatal("UniqueRunnerID ldflag missing")
	}
	if LDServerContextKey == "" || LDServerContextKind == "" {
		utils.Logger.Fatal("LD context ldflags missing")
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV env var is missing")
	}
	appUrl := os.Getenv("APP_URL_FROM_ANYWHERE")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL_FROM_ANYWHERE env var is missing")
	}
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}

	client, err := utils.NewBWSSecretsClient()
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to initialize BWSSecretsClient")
	}
	defer client.Close()

	appSecretsName := fmt.Sprintf("%s-%s", AppName, env)
	appSecrets, err := client.GetBWSSecrets(appSecretsName)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to fetch app secrets from BWS")
	}

	sharedSecretsName := fmt.Sprintf("shared-%s", env)
	sharedSecrets, err := client.GetBWSSecrets(sharedSecretsName)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to fetch shared secrets from BWS")
	}

	ldSDKKey := strings.TrimSpace(appSecrets["LD_SDK_KEY"])
	if ldSDKKey == "" {
		utils.Logger.Fatalf("LD_SDK_KEY not found in BWS secrets (%s)", appSecretsName)
	}
	flags, err := loadFlags(ldSDKKey)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to load LaunchDarkly flags")
	}

	cfg, err := Build(appSecrets, sharedSecrets, flags)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}
	cfg.AppPort = appPort
	cfg.AppUrl = appUrl
	return cfg
}

// Build assembles a Config from already fetched secrets and flags.
func Build(appSecrets, sharedSecrets map[string]string, flags Flags) (*Config, error) {
	vals, err := utils.RequireSecrets(appSecrets,
		"DB_URL", "REDIS_HOSTS", "LEDGER_RPC_URL", "TICKET_VERIFIER_PRIV_KEY",
	)
	if err != nil {
		return nil, err
	}
	dbURL, redisHosts, rpcURL, privB58 := vals[0], vals[1], vals[2], vals[3]

	privKey, err := verification.ParsePrivateKey(privB58)
	if err != nil {
		return nil, fmt.Errorf("TICKET_VERIFIER_PRIV_KEY: %w", err)
	}

	pubB64 := strings.TrimSpace(sharedSecrets["GATE_JWT_PUBLIC_KEY_BASE64"])
	if pubB64 == "" {
		return nil, fmt.Errorf("GATE_JWT_PUBLIC_KEY_BASE64 not found in shared secrets")
	}
	pubPEM, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, fmt.Errorf("GATE_JWT_PUBLIC_KEY_BASE64 is not base64: %w", err)
	}
	gatePub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gate RSA public key: %w", err)
	}

	backend := strings.ToLower(strings.TrimSpace(flags.LedgerBackend))
	if backend == "" {
		backend = constants.LedgerBackendSolana
	}
	if backend != constants.LedgerBackendSolana && backend != constants.LedgerBackendSui {
		return nil, fmt.Errorf("unknown ledger_backend %q", flags.LedgerBackend)
	}

	var markerTTL time.Duration
	if flags.AttendanceMarkerTTLHours > 0 {
		markerTTL = time.Duration(flags.AttendanceMarkerTTLHours) * time.Hour
	}

	return &Config{
		OrganizationName:           OrganizationName,
		AppName:                    AppName,
		DBUrl:                      dbURL,
		RedisHosts:                 redisHosts,
		RedisPassword:              appSecrets["REDIS_PASSWORD"],
		LedgerRPCURL:               rpcURL,
		TicketProgramID:            strings.TrimSpace(appSecrets["TICKET_PROGRAM_ID"]),
		VerifierPrivateKey:         privKey,
		GatePublicKey:              gatePub,
		UniqueRunNumber:            UniqueRunNumber,
		UniqueRunnerID:             UniqueRunnerID,
		LDFlag_UsingIsolatedSchema: flags.UsingIsolatedSchema,
		LDFlag_LedgerBackend:       backend,
		LDFlag_CORSHighSecurity:    flags.CORSHighSecurity,
		LDFlag_AttendanceMarkerTTL: markerTTL,
	}, nil
}

func loadFlags(sdkKey string) (Flags, error) {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		return Flags{}, fmt.Errorf("create LaunchDarkly client: %w", err)
	}
	defer ldClient.Close()

	ctx := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)
	var f Flags

	if f.UsingIsolatedSchema, err = ldClient.BoolVariation("using_isolated_schema", ctx, false); err != nil {
		return Flags{}, fmt.Errorf("using_isolated_schema: %w", err)
	}
	utils.Logger.Debugf("using_isolated_schema flag: %t", f.UsingIsolatedSchema)

	if f.LedgerBackend, err = ldClient.StringVariation("ledger_backend", ctx, constants.LedgerBackendSolana); err != nil {
		return Flags{}, fmt.Errorf("ledger_backend: %w", err)
	}
	utils.Logger.Debugf("ledger_backend flag: %s", f.LedgerBackend)

	if f.CORSHighSecurity, err = ldClient.BoolVariation("cors_high_security", ctx, false); err != nil {
		return Flags{}, fmt.Errorf("cors_high_security: %w", err)
	}
	utils.Logger.Debugf("cors_high_security flag: %t", f.CORSHighSecurity)

	if f.AttendanceMarkerTTLHours, err = ldClient.IntVariation("attendance_marker_ttl_hours", ctx, 0); err != nil {
		return Flags{}, fmt.Errorf("attendance_marker_ttl_hours: %w", err)
	}
	utils.Logger.Debugf("attendance_marker_ttl_hours flag: %d", f.AttendanceMarkerTTLHours)

	return f, nil
}

// Close wipes the verifier signing key. Call it only after the server stops.
func (c *Config) Close() {
	for i := range c.VerifierPrivateKey {
		c.VerifierPrivateKey[i] = 0
	}
}
