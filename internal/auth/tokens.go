package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"mediakeep/internal/quota"
)

var ErrInvalidSubject = errors.New("invalid subject")

// CreateToken provisions an API token for a principal on a tier and
// ensures a quota account exists for it. The raw token is returned once
// and only its hash is stored.
//
// Schema:
//
//	CREATE TABLE api_tokens (
//	    token_hash TEXT PRIMARY KEY,
//	    subject    TEXT NOT NULL,
//	    tier       TEXT NOT NULL DEFAULT 'free',
//	    disabled   BOOLEAN NOT NULL DEFAULT FALSE
//	);
func (a *Authenticator) CreateToken(ctx context.Context, subject, tier string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: subject required", ErrInvalidSubject)
	}
	if !quota.ValidTier(tier) {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidSubject, tier)
	}

	rawToken, err := generateToken(32)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(rawToken))
	hash := hex.EncodeToString(sum[:])

	if _, err := a.db.Exec(ctx, `
		INSERT INTO api_tokens (token_hash, subject, tier)
		VALUES ($1, $2, $3)
	`, hash, subject, tier); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	ledger := quota.NewPgLedger(a.db)
	if err := ledger.EnsureAccount(ctx, subject, tier); err != nil {
		return "", err
	}
	return rawToken, nil
}

func generateToken(lengthBytes int) (string, error) {
	if lengthBytes <= 0 {
		lengthBytes = 32
	}
	buf := make([]byte, lengthBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
