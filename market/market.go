// Package market carries the in-process stand-in for the trading
// venue. The real venue lives outside this service; until it is
// attached over a transport, PriceBoard holds the global price factors
// the policy engine biases and reports the activity level fed to it by
// the ingestion side.
package market

import (
	"context"
	"sync"

	"github.com/duskhaven/economy/economy/interfaces"
)

// PriceBoard is a thread-safe implementation of the market
// collaborator contract.
type PriceBoard struct {
	mu       sync.RWMutex
	buy      float64
	sell     float64
	activity float64
}

func NewPriceBoard() *PriceBoard {
	return &PriceBoard{buy: 1.0, sell: 1.0, activity: 0.5}
}

var _ interfaces.Market = (*PriceBoard)(nil)

func (b *PriceBoard) SetGlobalPriceFactors(_ context.Context, buy, sell float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buy, b.sell = buy, sell
	return nil
}

func (b *PriceBoard) GetGlobalPriceFactors(_ context.Context) (buy, sell float64, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buy, b.sell, nil
}

func (b *PriceBoard) CurrentActivityLevel(_ context.Context) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activity, nil
}

// ReportActivity lets the trade ingestion side publish the venue's
// current activity level in [0,1].
func (b *PriceBoard) ReportActivity(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activity = level
}
