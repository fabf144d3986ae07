// Package interfaces declares the contracts the economy director
// consumes from the rest of the world: the ledger holding balances,
// the trading venue, and the notification sink. Implementations live
// in database/ and notifier/; tests use in-memory fakes.
package interfaces

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ParticipantBalance is one ledger row as seen by the director.
type ParticipantBalance struct {
	ID      snowflake.ID
	Balance float64
}

// Ledger holds participant balances and executes transfers. Calls made
// from the heartbeat are treated as fallible and are not retried
// within a tick: on error the tick logs and moves on.
type Ledger interface {
	BalanceOf(ctx context.Context, id snowflake.ID) (float64, error)
	Credit(ctx context.Context, id snowflake.ID, amount float64, reason string) error
	Debit(ctx context.Context, id snowflake.ID, amount float64, reason string) error
	TotalMoneySupply(ctx context.Context) (float64, error)
	ActiveParticipants(ctx context.Context) ([]ParticipantBalance, error)
}

// Market is the trading venue. The global price factors default to 1.0
// and are multiplied by the policy engine's bias.
type Market interface {
	SetGlobalPriceFactors(ctx context.Context, buy, sell float64) error
	GetGlobalPriceFactors(ctx context.Context) (buy, sell float64, err error)
	CurrentActivityLevel(ctx context.Context) (float64, error)
}

// Event is a structured notification for the presentation layer.
type Event struct {
	Kind    string
	At      time.Time
	Payload map[string]any
}

// Notifier receives cycle-change and intervention announcements. Both
// methods are fire-and-forget from the caller's point of view.
type Notifier interface {
	Broadcast(ctx context.Context, message string)
	Emit(ctx context.Context, event Event)
}
