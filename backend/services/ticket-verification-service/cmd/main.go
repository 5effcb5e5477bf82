package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/app"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/config"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/controllers"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/routes"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/services"
	"github.com/ticketland/mono-repo/backend/shared/go-ledger"
	"github.com/ticketland/mono-repo/backend/shared/go-middleware"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize ticket-verification-service:", err)
	}
	defer application.Close()

	// Ledger and projection store
	rpc, err := ledger.NewRPCClient(cfg.LedgerRPCURL, constants.LedgerRPCTimeout, constants.LedgerRPCMaxRetries)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid ledger RPC endpoint")
	}
	var ownership verification.Ledger
	switch cfg.LDFlag_LedgerBackend {
	case constants.LedgerBackendSui:
		ownership = ledger.NewSuiLedger(rpc, utils.ComponentLogger("ledger"))
	default:
		ownership = ledger.NewSolanaLedger(rpc, cfg.TicketProgramID, utils.ComponentLogger("ledger"))
	}
	store, err := services.NewTicketStore(cfg.LDFlag_LedgerBackend, application.DB)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create ticket store")
	}
	utils.Logger.Infof("Verifying ownership against the %s ledger", cfg.LDFlag_LedgerBackend)

	// Verification core
	guard := verification.NewAttendanceGuard(application.LockCache, verification.GuardOptions{
		LeaseTTL:       constants.AttendanceLeaseTTL,
		AcquireTimeout: constants.AttendanceAcquireTimeout,
		RetryDelay:     constants.AttendanceLeaseRetryDelay,
		MarkerTTL:      cfg.LDFlag_AttendanceMarkerTTL,
	})
	verifier, err := verification.NewVerifier(ownership, store, guard, cfg.VerifierPrivateKey,
		verification.WithLogger(utils.ComponentLogger("verifier")))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create verifier")
	}

	// Services
	verificationService := services.NewVerificationService(verifier)

	// Controllers
	healthController := controllers.NewHealthController(application.DB, application.LockCache)
	verificationController := controllers.NewVerificationController(verificationService)

	// Router setup
	router := mux.NewRouter()

	// Public Routes
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.TicketsValidate, verificationController.ValidateResultHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.TicketsVerifierKey, verificationController.VerifierKeyHandler).Methods(http.MethodGet)

	// Secured routes for gate devices
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.GateAuthMiddleware(cfg.GatePublicKey))
	secured.HandleFunc(routes.TicketsVerify, verificationController.VerifyTicketHandler).Methods(http.MethodPost)

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("ticket-verification-service failed to start:", err)
	}
}
