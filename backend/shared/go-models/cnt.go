// go-models/cnt.go
package models

import "time"

// Cnt is the off-chain projection of a Sui collectible ticket object.
// Drafts have not been minted and are never verifiable.
type Cnt struct {
	Versioned
	CntSuiAddress   string     `json:"cnt_sui_address"`
	EventID         string     `json:"event_id"`
	TicketTypeIndex uint8      `json:"ticket_type_index"`
	Draft           bool       `json:"draft"`
	Attended        bool       `json:"attended"`
	AttendedAt      *time.Time `json:"attended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (c *Cnt) GetID() string { return c.CntSuiAddress }
