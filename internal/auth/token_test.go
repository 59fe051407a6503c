package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func TestNewParsesKey(t *testing.T) {
	if _, err := New(123, 456, testKeyPEM(t)); err != nil {
		t.Fatalf("New with valid key: %v", err)
	}
	if _, err := New(123, 456, []byte("not a key")); err == nil {
		t.Fatal("New with garbage key succeeded")
	}
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"no expiry recorded", time.Time{}, true},
		{"already past", time.Now().Add(-time.Hour), true},
		{"inside the leeway window", time.Now().Add(10 * time.Second), true},
		{"comfortably in the future", time.Now().Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &TokenManager{expiry: tt.expiry}
			if got := m.isExpired(); got != tt.want {
				t.Errorf("isExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureValidSingleFlight(t *testing.T) {
	var exchanges atomic.Int32
	m := &TokenManager{}
	m.exchange = func(ctx context.Context) (string, time.Time, error) {
		exchanges.Add(1)
		// Hold the exchange open long enough for every caller to
		// pile up behind it.
		time.Sleep(50 * time.Millisecond)
		return "tok", time.Now().Add(time.Hour), nil
	}

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.EnsureValid(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchange count = %d, want 1", got)
	}

	// A caller arriving after the refresh finished sees the cached
	// token and must not trigger another exchange.
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchange count after late EnsureValid = %d, want 1", got)
	}
}

func TestRefreshIsUnconditional(t *testing.T) {
	var exchanges atomic.Int32
	m := &TokenManager{}
	m.exchange = func(ctx context.Context) (string, time.Time, error) {
		exchanges.Add(1)
		return "tok", time.Now().Add(time.Hour), nil
	}

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Token is still valid, but Refresh must exchange anyway: the
	// remote side may have revoked it ahead of expiry.
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("exchange count = %d, want 2", got)
	}
}

func TestRefreshReplacesClients(t *testing.T) {
	m := &TokenManager{}
	m.exchange = func(ctx context.Context) (string, time.Time, error) {
		return "tok", time.Now().Add(time.Hour), nil
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	firstRest, err := m.Rest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	firstGraph, err := m.GraphQL(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if firstRest == nil || firstGraph == nil {
		t.Fatal("clients not built by refresh")
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	secondRest, err := m.Rest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if secondRest == firstRest {
		t.Error("REST client not replaced by refresh")
	}
}

func TestExchangeFailurePropagates(t *testing.T) {
	wantErr := errors.New("exchange rejected")
	m := &TokenManager{}
	m.exchange = func(ctx context.Context) (string, time.Time, error) {
		return "", time.Time{}, wantErr
	}

	err := m.EnsureValid(context.Background())
	if err == nil {
		t.Fatal("EnsureValid succeeded despite exchange failure")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
	// The manager must not pretend the (absent) credential is valid.
	if !m.isExpired() {
		t.Error("manager reports valid credential after failed exchange")
	}
	if _, err := m.Rest(context.Background()); err == nil {
		t.Error("Rest handed out a client despite failed exchange")
	}
}
