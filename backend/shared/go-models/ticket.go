// go-models/ticket.go
package models

import "time"

// Ticket is the off-chain projection of a Solana ticket. TicketMetadata is
// the on-chain account address and comes from ticket_onchain_accounts.
type Ticket struct {
	Versioned
	TicketNFT       string     `json:"ticket_nft"`
	TicketMetadata  string     `json:"ticket_metadata"`
	EventID         string     `json:"event_id"`
	TicketTypeIndex uint8      `json:"ticket_type_index"`
	Attended        bool       `json:"attended"`
	AttendedAt      *time.Time `json:"attended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (t *Ticket) GetID() string { return t.TicketMetadata }
