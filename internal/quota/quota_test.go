package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/go-units"

	"mediakeep/internal/mediatype"
)

func TestFileCap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tier string
		kind mediatype.Kind
		want int64
	}{
		{TierFree, mediatype.KindVideo, 100 * units.MiB},
		{TierPremium, mediatype.KindVideo, 500 * units.MiB},
		{TierPro, mediatype.KindVideo, 2 * units.GiB},
		{"mystery", mediatype.KindVideo, 100 * units.MiB},
		{TierFree, mediatype.KindImage, 0},
		{TierPro, mediatype.KindImage, 0},
	}
	for _, tt := range tests {
		if got := FileCap(tt.tier, tt.kind); got != tt.want {
			t.Fatalf("FileCap(%q, %q) = %d, want %d", tt.tier, tt.kind, got, tt.want)
		}
	}
}

func TestStorageLimit(t *testing.T) {
	t.Parallel()
	if got := StorageLimit(TierPremium); got != 10*units.GiB {
		t.Fatalf("StorageLimit(premium) = %d", got)
	}
	if got := StorageLimit("nope"); got != StorageLimit(TierFree) {
		t.Fatalf("unknown tier should fall back to free, got %d", got)
	}
}

func TestValidTier(t *testing.T) {
	t.Parallel()
	for _, tier := range []string{TierFree, TierPremium, TierPro} {
		if !ValidTier(tier) {
			t.Fatalf("ValidTier(%q) = false", tier)
		}
	}
	if ValidTier("platinum") {
		t.Fatalf("ValidTier(platinum) = true")
	}
}

func TestMemLedger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := NewMemLedger()
	ledger.Add("alice", TierFree, 100)

	acct, err := ledger.Account(ctx, "alice")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acct.BytesUsed != 100 || acct.Tier != TierFree {
		t.Fatalf("Account() = %+v", acct)
	}

	if err := ledger.Commit(ctx, "alice", 50); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	acct, _ = ledger.Account(ctx, "alice")
	if acct.BytesUsed != 150 {
		t.Fatalf("BytesUsed = %d after commit, want 150", acct.BytesUsed)
	}
	if ledger.Commits() != 1 {
		t.Fatalf("Commits() = %d, want 1", ledger.Commits())
	}

	if _, err := ledger.Account(ctx, "nobody"); !errors.Is(err, ErrUnknownPrincipal) {
		t.Fatalf("Account(nobody) error = %v, want ErrUnknownPrincipal", err)
	}
}
