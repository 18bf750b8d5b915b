package repository

import (
	"strings"

	domrepo "CandleHist/internal/domain/repository"
)

// StaticDestinations answers whether an asset pair has a configured history
// destination. Lookups are case-insensitive.
type StaticDestinations struct {
	pairs map[string]struct{}
}

func NewStaticDestinations(assetPairIDs []string) *StaticDestinations {
	pairs := make(map[string]struct{}, len(assetPairIDs))
	for _, id := range assetPairIDs {
		pairs[strings.ToUpper(id)] = struct{}{}
	}
	return &StaticDestinations{pairs: pairs}
}

func (d *StaticDestinations) CanStore(assetPairID string) bool {
	_, ok := d.pairs[strings.ToUpper(assetPairID)]
	return ok
}

var _ domrepo.DestinationConfig = (*StaticDestinations)(nil)
