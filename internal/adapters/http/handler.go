package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PabloGalante/rentchat/internal/adapters/auth"
	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/app/chatroom"
	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
	"github.com/PabloGalante/rentchat/internal/validation"
)

type Server struct {
	rooms *chatroom.Registry
	inbox *booking.Inbox
	authn auth.Authenticator
}

func NewServer(rooms *chatroom.Registry, inbox *booking.Inbox, authn auth.Authenticator) http.Handler {
	s := &Server{rooms: rooms, inbox: inbox, authn: authn}

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging, middleware.Recoverer, withCORS)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(withAuth(authn))

		// /chats/open → open a chat view (POST)
		r.Post("/chats/open", s.handleOpenChat)

		// /views/{viewID}...
		r.Route("/views/{viewID}", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Delete("/", s.handleCloseView)
			r.Get("/stream", s.handleStreamView)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/booking", s.handleSubmitBooking)
			r.Delete("/booking", s.handleDismissBooking)
			r.Get("/partner", s.handlePartner)
		})

		r.Get("/users/{userID}/booking-requests", s.handleListBookingRequests)
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type openChatRequest struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

type openChatResponse struct {
	ViewID string       `json:"view_id"`
	View   viewResponse `json:"view"`
}

type profileResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

type messageResponse struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"created_at"`
	Author    profileResponse `json:"author"`
	Mine      bool            `json:"mine"`
}

type bookingPanelResponse struct {
	Open  bool   `json:"open"`
	Draft string `json:"draft"`
	Error string `json:"error,omitempty"`
}

type viewResponse struct {
	ConversationID string               `json:"conversation_id"`
	Version        uint64               `json:"version"`
	Loading        bool                 `json:"loading"`
	Failed         bool                 `json:"failed"`
	Error          string               `json:"error,omitempty"`
	Messages       []messageResponse    `json:"messages"`
	Partner        profileResponse      `json:"partner"`
	Draft          string               `json:"draft"`
	SendError      string               `json:"send_error,omitempty"`
	Booking        bookingPanelResponse `json:"booking"`
	Closed         bool                 `json:"closed"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Message messageResponse `json:"message"`
	View    viewResponse    `json:"view"`
}

type submitBookingRequest struct {
	Message string `json:"message"`
}

type bookingRequestResponse struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type submitBookingResponse struct {
	Global bookingRequestResponse `json:"global"`
	Tenant bookingRequestResponse `json:"tenant"`
}

type partnerResponse struct {
	UserID      string `json:"user_id"`
	ProfilePath string `json:"profile_path"`
}

type listBookingRequestsResponse struct {
	Ledger   string                   `json:"ledger"`
	Requests []bookingRequestResponse `json:"requests"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	var req openChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	conv := domain.Conversation{
		ID:         domain.ConversationID(req.ID),
		SenderID:   domain.UserID(req.SenderID),
		ReceiverID: domain.UserID(req.ReceiverID),
	}
	if err := validation.Struct(conv); err != nil {
		badRequest(w, validation.Summary(err))
		return
	}

	viewID, room, err := s.rooms.Open(conv, auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, openChatResponse{
		ViewID: viewID,
		View:   toViewResponse(room.View()),
	})
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(room.View()))
}

func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.room(w, r); !ok {
		return
	}
	if err := s.rooms.Close(chi.URLParam(r, "viewID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	room.SetDraft(req.Text)
	msg, err := room.Send(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) || errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrViewClosed) {
			writeError(w, r, err)
			return
		}
		observability.LoggerFromContext(r.Context()).Error("send message failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": room.View().SendError})
		return
	}

	writeJSON(w, http.StatusCreated, sendMessageResponse{
		Message: toMessageResponse(room, msg),
		View:    toViewResponse(room.View()),
	})
}

func (s *Server) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}

	var req submitBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	room.OpenBookingPanel()
	room.SetBookingDraft(req.Message)
	out, err := room.SubmitBooking(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitBookingResponse{
		Global: toBookingRequestResponse(out.Global),
		Tenant: toBookingRequestResponse(out.Tenant),
	})
}

// handleDismissBooking closes the booking panel, keeping its draft.
func (s *Server) handleDismissBooking(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	room.DismissBookingPanel()
	writeJSON(w, http.StatusOK, toViewResponse(room.View()))
}

// handlePartner is the navigate-out hook of the partner's name and avatar.
func (s *Server) handlePartner(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}

	self, _ := room.Viewer()
	partner := room.Conversation().PartnerOf(self.ID)
	writeJSON(w, http.StatusOK, partnerResponse{
		UserID:      string(partner),
		ProfilePath: "/users/" + string(partner) + "/profile",
	})
}

func (s *Server) handleListBookingRequests(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "userID"))
	if caller, _ := auth.UserFromContext(r.Context()); caller.ID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	ledger, err := domain.ParseLedger(r.URL.Query().Get("ledger"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	reqs, err := s.inbox.List(r.Context(), ledger, userID, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := listBookingRequestsResponse{
		Ledger:   string(ledger),
		Requests: make([]bookingRequestResponse, 0, len(reqs)),
	}
	for _, req := range reqs {
		resp.Requests = append(resp.Requests, toBookingRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, resp)
}

// room resolves the view of the path and checks that the caller owns it.
// Views of other users are reported as missing.
func (s *Server) room(w http.ResponseWriter, r *http.Request) (*chatroom.Room, bool) {
	room, err := s.rooms.Get(chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	caller, _ := auth.UserFromContext(r.Context())
	viewer, _ := room.Viewer()
	if caller.ID != viewer.ID {
		writeError(w, r, domain.ErrViewNotFound)
		return nil, false
	}
	return room, true
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toProfileResponse(p domain.ParticipantProfile) profileResponse {
	return profileResponse{ID: string(p.ID), Name: p.Name, PhotoURL: p.PhotoURL}
}

func toDisplayMessageResponse(m chatroom.DisplayMessage) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		Author:    toProfileResponse(m.Author),
		Mine:      m.Mine,
	}
}

// toMessageResponse renders a freshly sent message with the viewer as author.
func toMessageResponse(room *chatroom.Room, m *domain.Message) messageResponse {
	author := domain.ParticipantProfile{ID: m.Author.ID, Name: m.Author.Name}
	for _, dm := range room.View().Messages {
		if dm.ID == m.ID {
			author = dm.Author
			break
		}
	}
	return messageResponse{
		ID:        string(m.ID),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		Author:    toProfileResponse(author),
		Mine:      true,
	}
}

func toViewResponse(v chatroom.View) viewResponse {
	msgs := make([]messageResponse, 0, len(v.Messages))
	for _, m := range v.Messages {
		msgs = append(msgs, toDisplayMessageResponse(m))
	}
	return viewResponse{
		ConversationID: string(v.ConversationID),
		Version:        v.Version,
		Loading:        v.Loading,
		Failed:         v.Failed,
		Error:          v.Error,
		Messages:       msgs,
		Partner:        toProfileResponse(v.Partner),
		Draft:          v.Draft,
		SendError:      v.SendError,
		Booking: bookingPanelResponse{
			Open:  v.Booking.Open,
			Draft: v.Booking.Draft,
			Error: v.Booking.Error,
		},
		Closed: v.Closed,
	}
}

func toBookingRequestResponse(b *domain.BookingRequest) bookingRequestResponse {
	if b == nil {
		return bookingRequestResponse{}
	}
	return bookingRequestResponse{
		ID:          string(b.ID),
		RequesterID: string(b.RequesterID),
		RecipientID: string(b.RecipientID),
		Message:     b.Message,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

// writeError maps domain errors to status codes. Remote failures only
// expose the user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConversation), errors.Is(err, domain.ErrEmptyMessage):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	case errors.Is(err, domain.ErrViewNotFound), errors.Is(err, domain.ErrViewClosed), errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case booking.IsDualWriteError(err):
		observability.LoggerFromContext(r.Context()).Error("booking request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to send booking request."})
	default:
		internalError(w, r, err)
	}
}
