package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"mediakeep/internal/auth"
	"mediakeep/internal/quota"
	"mediakeep/internal/ratelimit"
)

type fakeVerifier struct {
	claims auth.Claims
	err    error
}

func (f *fakeVerifier) Authenticate(context.Context, string) (auth.Claims, error) {
	return f.claims, f.err
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", nil)
	req.RemoteAddr = "203.0.113.9:4432"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRateLimit_PerPrincipalTier(t *testing.T) {
	t.Parallel()
	verifier := &fakeVerifier{claims: auth.Claims{Subject: "alice", Tier: quota.TierFree}}
	mw := newRateLimitMiddlewareWithConfig(verifier, ratelimit.Config{
		Window: time.Minute, UploadFree: 2, AnonIP: 100,
	})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, mw, "tok")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doRequest(t, mw, "tok")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestRateLimit_AnonymousFallsBackToIP(t *testing.T) {
	t.Parallel()
	verifier := &fakeVerifier{err: errors.New("bad token")}
	mw := newRateLimitMiddlewareWithConfig(verifier, ratelimit.Config{
		Window: time.Minute, UploadFree: 100, AnonIP: 1,
	})

	if rec := doRequest(t, mw, ""); rec.Code != http.StatusOK {
		t.Fatalf("first anonymous request status = %d", rec.Code)
	}
	if rec := doRequest(t, mw, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous request status = %d, want 429", rec.Code)
	}
}

func TestRateLimit_HeadersSet(t *testing.T) {
	t.Parallel()
	verifier := &fakeVerifier{claims: auth.Claims{Subject: "bob", Tier: quota.TierPro}}
	mw := newRateLimitMiddlewareWithConfig(verifier, ratelimit.Config{
		Window: time.Minute, UploadPro: 10,
	})
	rec := doRequest(t, mw, "tok")
	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Fatalf("X-RateLimit-Remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}
