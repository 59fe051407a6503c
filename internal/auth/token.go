// Package auth manages the GitHub App installation token: generation
// through the app JWT exchange, expiry tracking, and coordinated
// refresh of the REST and GraphQL client handles bound to it.
package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v57/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// expiryLeeway is subtracted from the advertised token expiry so a
// token handed out by EnsureValid cannot expire mid-call.
const expiryLeeway = 30 * time.Second

// TokenManager owns the installation token lifecycle. A refresh
// replaces the token and both client handles in one step; readers
// never observe a client bound to the old token next to one bound to
// the new. Concurrent refreshes collapse into a single exchange.
type TokenManager struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey

	// exchange performs the installation token exchange. Tests swap
	// it out to count exchanges without hitting GitHub.
	exchange func(ctx context.Context) (string, time.Time, error)

	group singleflight.Group

	mu      sync.RWMutex
	token   string
	expiry  time.Time
	rest    *github.Client
	graphql *githubv4.Client
}

// New parses the PEM private key and returns a manager with no cached
// token; the first EnsureValid performs the initial exchange.
func New(appID, installationID int64, pemKey []byte) (*TokenManager, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	m := &TokenManager{
		appID:          appID,
		installationID: installationID,
		key:            key,
	}
	m.exchange = m.exchangeInstallationToken
	return m, nil
}

// EnsureValid guarantees the cached token is non-expired on return,
// refreshing if needed. It does not guarantee GitHub still accepts the
// token; revocation ahead of expiry surfaces as a 401 on use.
func (m *TokenManager) EnsureValid(ctx context.Context) error {
	if !m.isExpired() {
		return nil
	}
	_, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		// A caller that queued behind a finished refresh sees the
		// fresh token here and must not trigger another exchange.
		if !m.isExpired() {
			return nil, nil
		}
		return nil, m.doRefresh(ctx)
	})
	return err
}

// Refresh unconditionally performs a fresh exchange, regardless of the
// cached expiry. Callers that race into an in-flight refresh share its
// outcome instead of starting their own.
func (m *TokenManager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		return nil, m.doRefresh(ctx)
	})
	return err
}

// Rest returns a REST client bound to a currently-valid token.
func (m *TokenManager) Rest(ctx context.Context) (*github.Client, error) {
	if err := m.EnsureValid(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rest, nil
}

// GraphQL returns a GraphQL client bound to a currently-valid token.
func (m *TokenManager) GraphQL(ctx context.Context) (*githubv4.Client, error) {
	if err := m.EnsureValid(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graphql, nil
}

// isExpired reports whether the cached token can no longer be used.
// A token with no recorded expiry counts as expired.
func (m *TokenManager) isExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expiry.IsZero() {
		return true
	}
	return !time.Now().Before(m.expiry.Add(-expiryLeeway))
}

// doRefresh runs the exchange and swaps token, expiry, and both client
// handles under the lock. On exchange failure the previous state is
// left untouched; it is already expired or rejected, so nothing will
// present it as valid.
func (m *TokenManager) doRefresh(ctx context.Context) error {
	token, expiry, err := m.exchange(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate installation token: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	rest := github.NewClient(tc)
	graphql := githubv4.NewClient(tc)

	m.mu.Lock()
	m.token = token
	m.expiry = expiry
	m.rest = rest
	m.graphql = graphql
	m.mu.Unlock()
	return nil
}

// exchangeInstallationToken authenticates as the app with a short
// RS256 JWT and trades it for an installation access token.
func (m *TokenManager) exchangeInstallationToken(ctx context.Context) (string, time.Time, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		// Backdated a minute to absorb clock skew against GitHub.
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(m.appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign app JWT: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: signed})
	appClient := github.NewClient(oauth2.NewClient(ctx, ts))

	installation, _, err := appClient.Apps.CreateInstallationToken(
		ctx, m.installationID, &github.InstallationTokenOptions{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create installation token: %w", err)
	}
	return installation.GetToken(), installation.GetExpiresAt().Time, nil
}
