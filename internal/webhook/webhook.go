// Package webhook receives GitHub webhook deliveries, verifies them,
// and dispatches typed events into the bridge's inbound path.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gitcord/gitcord/internal/bridge"
)

// maxBodySize bounds webhook payloads. Issue and comment payloads are
// small; 10 MB is generous headroom.
const maxBodySize = 10 * 1024 * 1024

// deduplicationWindow is how long delivery IDs are tracked for replay
// protection. GitHub retries within minutes, so an hour is plenty.
const deduplicationWindow = 1 * time.Hour

// action is the webhook's dispatch key. Only the actions the bridge
// mirrors are enumerated; anything else is acknowledged and ignored so
// new GitHub event types never cause failures.
type action string

const (
	actionOpened   action = "opened"
	actionCreated  action = "created"
	actionClosed   action = "closed"
	actionReopened action = "reopened"
	actionLocked   action = "locked"
	actionUnlocked action = "unlocked"
	actionDeleted  action = "deleted"
)

// payload is the decoded webhook body. Issue and comment are optional;
// each handler checks for what it needs.
type payload struct {
	Action  action     `json:"action"`
	Issue   *ghIssue   `json:"issue"`
	Comment *ghComment `json:"comment"`
}

type ghIssue struct {
	NodeID string    `json:"node_id"`
	Number int       `json:"number"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	User   *ghUser   `json:"user"`
	Labels []ghLabel `json:"labels"`
}

type ghComment struct {
	ID   int64   `json:"id"`
	Body string  `json:"body"`
	User *ghUser `json:"user"`
}

type ghUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type ghLabel struct {
	Name string `json:"name"`
}

// Handler is an http.Handler for the webhook endpoint. With a non-empty
// secret it verifies X-Hub-Signature-256 before trusting anything in
// the body.
type Handler struct {
	secret []byte
	bridge *bridge.Bridge
	logger *slog.Logger

	mu         sync.Mutex
	deliveries map[string]time.Time
}

// NewHandler creates a webhook handler. An empty secret disables
// signature verification (local development only).
func NewHandler(secret []byte, b *bridge.Bridge, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		secret:     secret,
		bridge:     b,
		logger:     logger,
		deliveries: make(map[string]time.Time),
	}
}

func (h *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(request.Body, maxBodySize))
	if err != nil {
		h.logger.Error("webhook: failed to read body", "error", err)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}
	if len(rawBody) == 0 {
		http.Error(writer, "", http.StatusBadRequest)
		return
	}

	if len(h.secret) > 0 {
		signature := request.Header.Get("X-Hub-Signature-256")
		if err := verifySignature(h.secret, rawBody, signature); err != nil {
			h.logger.Warn("webhook: signature verification failed",
				"error", err,
				"remote_addr", request.RemoteAddr,
			)
			http.Error(writer, "", http.StatusUnauthorized)
			return
		}
	}

	deliveryID := request.Header.Get("X-GitHub-Delivery")
	if deliveryID != "" && h.isDuplicate(deliveryID) {
		h.logger.Debug("webhook: duplicate delivery, ignoring", "delivery_id", deliveryID)
		writer.WriteHeader(http.StatusOK)
		return
	}

	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		h.logger.Error("webhook: failed to decode payload",
			"delivery_id", deliveryID,
			"error", err,
		)
		// Retrying won't fix a malformed payload.
		writer.WriteHeader(http.StatusOK)
		return
	}

	if err := h.dispatch(request.Context(), p); err != nil {
		// The bridge already logged and journaled; the delivery is
		// acknowledged either way so GitHub doesn't redeliver an
		// event we have classified as terminal.
		h.logger.Debug("webhook: event not mirrored",
			"action", string(p.Action),
			"delivery_id", deliveryID,
			"error", err,
		)
	}
	writer.WriteHeader(http.StatusOK)
}

// dispatch routes a decoded payload to the bridge entry point for its
// action. The switch is exhaustive over the enumerated actions;
// unknown actions fall through silently.
func (h *Handler) dispatch(ctx context.Context, p payload) error {
	switch p.Action {
	case actionOpened:
		if p.Issue == nil {
			return fmt.Errorf("opened event without issue")
		}
		return h.bridge.HandleIssueOpened(ctx, issueEvent(p.Issue))
	case actionCreated:
		if p.Comment == nil || p.Issue == nil {
			return fmt.Errorf("created event without comment or issue")
		}
		ev := bridge.CommentEvent{
			ID:          p.Comment.ID,
			Body:        p.Comment.Body,
			IssueNodeID: p.Issue.NodeID,
		}
		if p.Comment.User != nil {
			ev.Login = p.Comment.User.Login
			ev.AvatarURL = p.Comment.User.AvatarURL
		}
		return h.bridge.HandleCommentCreated(ctx, ev)
	case actionClosed:
		return h.bridge.HandleIssueClosed(ctx, issueNodeID(p.Issue))
	case actionReopened:
		return h.bridge.HandleIssueReopened(ctx, issueNodeID(p.Issue))
	case actionLocked:
		return h.bridge.HandleIssueLocked(ctx, issueNodeID(p.Issue))
	case actionUnlocked:
		return h.bridge.HandleIssueUnlocked(ctx, issueNodeID(p.Issue))
	case actionDeleted:
		return h.bridge.HandleIssueDeleted(ctx, issueNodeID(p.Issue))
	default:
		return nil
	}
}

func issueEvent(issue *ghIssue) bridge.IssueEvent {
	ev := bridge.IssueEvent{
		NodeID: issue.NodeID,
		Number: issue.Number,
		Title:  issue.Title,
		Body:   issue.Body,
	}
	if issue.User != nil {
		ev.Login = issue.User.Login
	}
	for _, label := range issue.Labels {
		ev.Labels = append(ev.Labels, label.Name)
	}
	return ev
}

func issueNodeID(issue *ghIssue) string {
	if issue == nil {
		return ""
	}
	return issue.NodeID
}

// verifySignature checks the X-Hub-Signature-256 header against the
// raw body.
func verifySignature(secret, body []byte, signature string) error {
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) {
		return fmt.Errorf("missing or malformed signature header")
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, prefix))
	if err != nil {
		return fmt.Errorf("signature is not valid hex")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// isDuplicate checks and records a delivery ID, pruning entries older
// than the deduplication window.
func (h *Handler) isDuplicate(deliveryID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for id, receivedAt := range h.deliveries {
		if now.Sub(receivedAt) > deduplicationWindow {
			delete(h.deliveries, id)
		}
	}

	if _, exists := h.deliveries[deliveryID]; exists {
		return true
	}
	h.deliveries[deliveryID] = now
	return false
}
