// Package quota tracks bytes consumed per principal against tier limits.
package quota

import (
	"context"
	"errors"

	"github.com/docker/go-units"

	"mediakeep/internal/mediatype"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
	TierPro     = "pro"
)

var ErrUnknownPrincipal = errors.New("unknown principal")

// Account is the current quota state of one principal.
type Account struct {
	Principal string
	Tier      string
	BytesUsed int64
}

// Ledger is the per-principal byte accounting. Commit is called exactly
// once per completed upload, with the final assembled size, never
// per-chunk.
type Ledger interface {
	Account(ctx context.Context, principal string) (Account, error)
	Commit(ctx context.Context, principal string, n int64) error
}

// Per-file video ceilings by tier.
var videoCaps = map[string]int64{
	TierFree:    100 * units.MiB,
	TierPremium: 500 * units.MiB,
	TierPro:     2 * units.GiB,
}

// Cumulative storage limits by tier; applies to all media classes.
var storageLimits = map[string]int64{
	TierFree:    1 * units.GiB,
	TierPremium: 10 * units.GiB,
	TierPro:     50 * units.GiB,
}

// ValidTier reports whether tier names a known subscription tier.
func ValidTier(tier string) bool {
	_, ok := storageLimits[tier]
	return ok
}

// StorageLimit returns the cumulative storage quota for a tier.
// Unknown tiers fall back to the free limits.
func StorageLimit(tier string) int64 {
	if limit, ok := storageLimits[tier]; ok {
		return limit
	}
	return storageLimits[TierFree]
}

// FileCap returns the per-file ceiling for a media class on a tier, or 0
// if the class has no per-file cap beyond the storage quota.
func FileCap(tier string, kind mediatype.Kind) int64 {
	if kind != mediatype.KindVideo {
		return 0
	}
	if cap, ok := videoCaps[tier]; ok {
		return cap
	}
	return videoCaps[TierFree]
}

// HumanSize formats a byte count for user-facing limit messages.
func HumanSize(n int64) string {
	return units.BytesSize(float64(n))
}
