package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Participant is one ledger account.
type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID         int64     `bun:"id,pk"` // snowflake
	Balance    float64   `bun:"balance,notnull,default:0"`
	LastActive time.Time `bun:"last_active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
