package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
)

// isAuthError reports whether an API call failed because GitHub
// rejected the credential. Installation tokens can be revoked ahead of
// their advertised expiry, so this is detected from the response, not
// from the cached expiry.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(err.Error(), "Bad credentials")
}

// withRetry executes op once; if GitHub rejected the credential it
// refreshes the token and retries exactly once. A second rejection is
// terminal; retrying further would loop forever against a misconfigured
// app. Any other failure surfaces immediately.
func (c *Client) withRetry(ctx context.Context, op func(context.Context) error) error {
	err := op(ctx)
	if !isAuthError(err) {
		return err
	}
	if refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
		return fmt.Errorf("failed to refresh token after auth error: %w", refreshErr)
	}
	return op(ctx)
}
