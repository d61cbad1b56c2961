package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	httpadapter "github.com/PabloGalante/rentchat/internal/adapters/http"
	"github.com/PabloGalante/rentchat/internal/adapters/auth"
	"github.com/PabloGalante/rentchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/app/chatroom"
	"github.com/PabloGalante/rentchat/internal/domain"
)

type testEnv struct {
	handler http.Handler
	store   *memory.MessageStore
	ledger  *memory.BookingLedger
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewMessageStore()
	profiles := memory.NewProfileStore()
	ledger := memory.NewBookingLedger()
	_ = profiles.PutProfile(&domain.ParticipantProfile{ID: "alice", Name: "Alice"})
	_ = profiles.PutProfile(&domain.ParticipantProfile{ID: "bob", Name: "Bob"})

	ctx, cancel := context.WithCancel(context.Background())
	registry := chatroom.NewRegistry(ctx, chatroom.Deps{
		Log:      store,
		Chats:    store,
		Profiles: profiles,
		Booking:  booking.NewChannel(ledger),
	})
	t.Cleanup(func() {
		registry.CloseAll()
		cancel()
	})

	return &testEnv{
		handler: httpadapter.NewServer(registry, booking.NewInbox(ledger), auth.HeaderAuthenticator{}),
		store:   store,
		ledger:  ledger,
	}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body=%s)", err, w.Body.String())
	}
}

func (e *testEnv) openChat(t *testing.T, user string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/chats/open", user, map[string]string{
		"id": "c1", "sender_id": "alice", "receiver_id": "bob",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ViewID string `json:"view_id"`
	}
	decode(t, w, &resp)
	return resp.ViewID
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/chats/open", "", map[string]string{"id": "c1"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOpenChatRejectsMissingID(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/chats/open", "alice", map[string]string{"sender_id": "alice"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "id is required") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestOpenChatAndSendMessage(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "alice")

	w := env.do(t, http.MethodPost, "/views/"+viewID+"/messages", "alice", map[string]string{"text": "  Hello  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Message struct {
			Text string `json:"text"`
			Mine bool   `json:"mine"`
		} `json:"message"`
	}
	decode(t, w, &resp)
	if resp.Message.Text != "Hello" || !resp.Message.Mine {
		t.Fatalf("unexpected message %+v", resp.Message)
	}

	summary, err := env.store.GetConversation(context.Background(), "c1")
	if err != nil || summary.LastMessage != "Hello" {
		t.Fatalf("summary not updated: %+v, %v", summary, err)
	}

	w = env.do(t, http.MethodPost, "/views/"+viewID+"/messages", "alice", map[string]string{"text": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a blank message, got %d", w.Code)
	}
}

func TestViewsArePrivateToTheirViewer(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "alice")

	if w := env.do(t, http.MethodGet, "/views/"+viewID, "bob", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's view, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/views/"+viewID, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPartnerNavigation(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "bob")

	w := env.do(t, http.MethodGet, "/views/"+viewID+"/partner", "bob", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		UserID      string `json:"user_id"`
		ProfilePath string `json:"profile_path"`
	}
	decode(t, w, &resp)
	if resp.UserID != "alice" || resp.ProfilePath != "/users/alice/profile" {
		t.Fatalf("unexpected partner %+v", resp)
	}
}

func TestBookingRequestAndInbox(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "bob")

	w := env.do(t, http.MethodPost, "/views/"+viewID+"/booking", "bob", map[string]string{"message": "Is this available?"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/users/alice/booking-requests?ledger=tenant", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Ledger   string `json:"ledger"`
		Requests []struct {
			RequesterID string `json:"requester_id"`
			Message     string `json:"message"`
			Status      string `json:"status"`
		} `json:"requests"`
	}
	decode(t, w, &resp)
	if resp.Ledger != string(domain.LedgerTenant) || len(resp.Requests) != 1 {
		t.Fatalf("unexpected inbox %+v", resp)
	}
	if r := resp.Requests[0]; r.RequesterID != "bob" || r.Message != "Is this available?" || r.Status != "pending" {
		t.Fatalf("unexpected request %+v", r)
	}

	if w := env.do(t, http.MethodGet, "/users/alice/booking-requests", "bob", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's inbox, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/users/alice/booking-requests?ledger=nope", "alice", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown ledger, got %d", w.Code)
	}
}

func TestDismissBookingPanel(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "alice")

	w := env.do(t, http.MethodDelete, "/views/"+viewID+"/booking", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Booking struct {
			Open bool `json:"open"`
		} `json:"booking"`
	}
	decode(t, w, &resp)
	if resp.Booking.Open {
		t.Fatalf("expected the booking panel to be closed")
	}

	if w := env.do(t, http.MethodDelete, "/views/"+viewID+"/booking", "bob", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's view, got %d", w.Code)
	}
}

func TestCloseView(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "alice")

	if w := env.do(t, http.MethodDelete, "/views/"+viewID, "alice", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if n := env.store.Watchers("c1"); n != 0 {
		t.Fatalf("expected subscription to be cancelled, got %d watchers", n)
	}
	if w := env.do(t, http.MethodGet, "/views/"+viewID, "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", w.Code)
	}
}

func TestStreamPushesViews(t *testing.T) {
	env := newTestServer(t)
	viewID := env.openChat(t, "alice")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set(auth.HeaderUserID, "alice")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/views/" + viewID + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	err = env.store.AppendMessage(context.Background(), &domain.Message{
		ID: "b1", ConversationID: "c1", Text: "Still free?", CreatedAt: time.Now(),
		Author: domain.Author{ID: "bob"},
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var v struct {
			Messages []struct {
				Text string `json:"text"`
			} `json:"messages"`
		}
		if err := ws.ReadJSON(&v); err != nil {
			t.Fatalf("reading view: %v", err)
		}
		if len(v.Messages) == 1 && v.Messages[0].Text == "Still free?" {
			return
		}
	}
}
