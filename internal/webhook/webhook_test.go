package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gitcord/gitcord/internal/bridge"
	"github.com/gitcord/gitcord/internal/models"
	"github.com/gitcord/gitcord/internal/store"
)

type fakeChat struct {
	createThreadCalls int
	lastThreadParams  bridge.ThreadParams
	messages          []string
	archived          []string
	unarchived        []string
	locked            []string
	unlocked          []string
	deleted           []string
}

func (f *fakeChat) CreateThread(ctx context.Context, params bridge.ThreadParams) (string, error) {
	f.createThreadCalls++
	f.lastThreadParams = params
	return "T1", nil
}

func (f *fakeChat) CreateMessage(ctx context.Context, threadID, content string) error {
	f.messages = append(f.messages, threadID)
	return nil
}

func (f *fakeChat) ArchiveThread(ctx context.Context, threadID string) error {
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakeChat) UnarchiveThread(ctx context.Context, threadID string) error {
	f.unarchived = append(f.unarchived, threadID)
	return nil
}

func (f *fakeChat) LockThread(ctx context.Context, threadID string) error {
	f.locked = append(f.locked, threadID)
	return nil
}

func (f *fakeChat) UnlockThread(ctx context.Context, threadID string) error {
	f.unlocked = append(f.unlocked, threadID)
	return nil
}

func (f *fakeChat) DeleteThread(ctx context.Context, threadID string) error {
	f.deleted = append(f.deleted, threadID)
	return nil
}

func newTestHandler(secret []byte) (*Handler, *fakeChat, *store.Store) {
	chat := &fakeChat{}
	st := store.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bridge.New(st, nil, chat, nil, logger, "G1")
	return NewHandler(secret, b, logger), chat, st
}

func post(h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, request)
	return recorder
}

const openedPayload = `{
	"action": "opened",
	"issue": {
		"node_id": "I1",
		"number": 7,
		"title": "Bug",
		"body": "desc",
		"user": {"login": "alice"},
		"labels": [{"name": "bug"}]
	}
}`

func TestOpenedDispatch(t *testing.T) {
	h, chat, st := newTestHandler(nil)
	st.SetTags([]models.Tag{{ID: "t1", Name: "bug"}})

	recorder := post(h, openedPayload, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if chat.createThreadCalls != 1 {
		t.Fatalf("create thread calls = %d, want 1", chat.createThreadCalls)
	}
	tags := chat.lastThreadParams.AppliedTags
	if len(tags) != 1 || tags[0] != "t1" {
		t.Errorf("applied tags = %v, want [t1]", tags)
	}
}

func TestUnknownActionIgnored(t *testing.T) {
	h, chat, _ := newTestHandler(nil)

	recorder := post(h, `{"action": "transferred", "issue": {"node_id": "I1"}}`, nil)
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for unknown action", recorder.Code)
	}
	if chat.createThreadCalls != 0 {
		t.Error("unknown action reached the bridge")
	}
}

func TestLifecycleDispatch(t *testing.T) {
	h, chat, st := newTestHandler(nil)
	st.Put(&models.Thread{ID: "T1", NodeID: "I1", Number: 7})

	tests := []struct {
		action string
		check  func() int
	}{
		{"closed", func() int { return len(chat.archived) }},
		{"reopened", func() int { return len(chat.unarchived) }},
		{"locked", func() int { return len(chat.locked) }},
		{"unlocked", func() int { return len(chat.unlocked) }},
		{"deleted", func() int { return len(chat.deleted) }},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			payload := `{"action": "` + tt.action + `", "issue": {"node_id": "I1"}}`
			if recorder := post(h, payload, nil); recorder.Code != http.StatusOK {
				t.Fatalf("status = %d", recorder.Code)
			}
			if tt.check() != 1 {
				t.Errorf("%s not dispatched", tt.action)
			}
		})
	}
}

func TestCommentCreatedDispatch(t *testing.T) {
	h, chat, st := newTestHandler(nil)
	st.Put(&models.Thread{ID: "T1", NodeID: "I1", Number: 7})

	payload := `{
		"action": "created",
		"issue": {"node_id": "I1"},
		"comment": {"id": 900, "body": "nice find", "user": {"login": "bob"}}
	}`
	if recorder := post(h, payload, nil); recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if len(chat.messages) != 1 || chat.messages[0] != "T1" {
		t.Errorf("messages = %v, want mirror into T1", chat.messages)
	}
}

func TestSignatureVerification(t *testing.T) {
	secret := []byte("s3cret")
	h, chat, _ := newTestHandler(secret)

	// Missing signature.
	if recorder := post(h, openedPayload, nil); recorder.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d, want 401", recorder.Code)
	}

	// Wrong signature.
	if recorder := post(h, openedPayload, map[string]string{
		"X-Hub-Signature-256": "sha256=" + strings.Repeat("00", 32),
	}); recorder.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d, want 401", recorder.Code)
	}
	if chat.createThreadCalls != 0 {
		t.Fatal("unverified delivery reached the bridge")
	}

	// Correct signature.
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(openedPayload))
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if recorder := post(h, openedPayload, map[string]string{
		"X-Hub-Signature-256": signature,
	}); recorder.Code != http.StatusOK {
		t.Errorf("good signature: status = %d, want 200", recorder.Code)
	}
	if chat.createThreadCalls != 1 {
		t.Error("verified delivery did not reach the bridge")
	}
}

func TestDuplicateDeliveryIgnored(t *testing.T) {
	h, chat, _ := newTestHandler(nil)

	headers := map[string]string{"X-GitHub-Delivery": "d-1"}
	if recorder := post(h, openedPayload, headers); recorder.Code != http.StatusOK {
		t.Fatal("first delivery rejected")
	}
	if recorder := post(h, openedPayload, headers); recorder.Code != http.StatusOK {
		t.Fatal("replayed delivery must still be acknowledged")
	}
	if chat.createThreadCalls != 1 {
		t.Errorf("create thread calls = %d, want 1 (replay must be dropped)", chat.createThreadCalls)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler(nil)
	request := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", recorder.Code)
	}
}

func TestEmptyAndMalformedBodies(t *testing.T) {
	h, chat, _ := newTestHandler(nil)

	if recorder := post(h, "", nil); recorder.Code != http.StatusBadRequest {
		t.Errorf("empty body: status = %d, want 400", recorder.Code)
	}
	// Malformed JSON is acknowledged; redelivery would not fix it.
	if recorder := post(h, "{not json", nil); recorder.Code != http.StatusOK {
		t.Errorf("malformed body: status = %d, want 200", recorder.Code)
	}
	if chat.createThreadCalls != 0 {
		t.Error("malformed delivery reached the bridge")
	}
}
