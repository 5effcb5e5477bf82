package utils

const (
	OrganizationName                      = "Ticketland"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

	// Gate devices authenticate with tokens issued for this audience.
	GateDeviceAccountType = "gate_device"
)
