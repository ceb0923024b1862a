package quota

import (
	"context"
	"fmt"
	"sync"
)

// MemLedger is an in-memory Ledger for tests.
type MemLedger struct {
	mu       sync.Mutex
	accounts map[string]*Account
	commits  int
}

var _ Ledger = (*MemLedger)(nil)

func NewMemLedger() *MemLedger {
	return &MemLedger{accounts: make(map[string]*Account)}
}

func (l *MemLedger) Add(principal, tier string, bytesUsed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[principal] = &Account{Principal: principal, Tier: tier, BytesUsed: bytesUsed}
}

func (l *MemLedger) Account(_ context.Context, principal string) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[principal]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownPrincipal, principal)
	}
	return *acct, nil
}

func (l *MemLedger) Commit(_ context.Context, principal string, n int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrincipal, principal)
	}
	acct.BytesUsed += n
	l.commits++
	return nil
}

// Commits reports how many times Commit succeeded, so tests can assert
// single-charge behavior.
func (l *MemLedger) Commits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commits
}
