package routes

const (
	Health             = "/health"
	TicketsVerify      = "/api/v1/tickets/verify"
	TicketsValidate    = "/api/v1/tickets/validate"
	TicketsVerifierKey = "/api/v1/tickets/verifier-key"
)
