package constants

import "time"

// Attendance lease tuning
const (
	AttendanceLeaseTTL        = 5 * time.Second
	AttendanceAcquireTimeout  = 3 * time.Second
	AttendanceLeaseRetryDelay = 50 * time.Millisecond
)

// Ledger backends selectable with the ledger_backend flag
const (
	LedgerBackendSolana = "solana"
	LedgerBackendSui    = "sui"
)

// Ledger RPC behaviour
const (
	LedgerRPCTimeout    = 5 * time.Second
	LedgerRPCMaxRetries = 3
)

// Dependency checks
const (
	HealthCheckTimeout  = 2 * time.Second
	RedisConnectTimeout = 3 * time.Second
)

// Requests larger than this are rejected before decoding.
const MaxRequestBodyBytes = 16 << 10
