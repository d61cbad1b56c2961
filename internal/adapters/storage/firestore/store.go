package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/rentchat/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (RENTCHAT_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client, e.g. one created by the Firebase app.
func NewStoreWithClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) chatsCol() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

func (s *Store) chatDoc(id domain.ConversationID) *firestore.DocumentRef {
	return s.chatsCol().Doc(string(id))
}

func (s *Store) messagesCol(id domain.ConversationID) *firestore.CollectionRef {
	return s.chatDoc(id).Collection("messages")
}

func (s *Store) userDoc(id domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(string(id))
}

func (s *Store) ledgerCol(ledger domain.Ledger) *firestore.CollectionRef {
	return s.client.Collection(string(ledger))
}

func (s *Store) rentalsCol() *firestore.CollectionRef {
	return s.client.Collection("rentals")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type chatDoc struct {
	SenderID        string    `firestore:"senderId"`
	ReceiverID      string    `firestore:"receiverId"`
	LastMessage     string    `firestore:"lastMessage"`
	LastMessageTime time.Time `firestore:"lastMessageTime"`
}

type authorDoc struct {
	ID   string `firestore:"_id"`
	Name string `firestore:"name"`
}

type messageDoc struct {
	Text      string    `firestore:"text"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
	User      authorDoc `firestore:"user"`
}

type userDoc struct {
	Name     string  `firestore:"name"`
	PhotoURL *string `firestore:"photoURL"`
}

type bookingDoc struct {
	RequesterID string    `firestore:"requesterId"`
	RecipientID string    `firestore:"recipientId"`
	Message     string    `firestore:"message"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type rentalDoc struct {
	Title     string    `firestore:"title"`
	PostedBy  string    `firestore:"postedBy"`
	Timestamp time.Time `firestore:"timestamp"`
}

func decodeMessage(conv domain.ConversationID) func(*firestore.DocumentSnapshot) (*domain.Message, error) {
	return func(snap *firestore.DocumentSnapshot) (*domain.Message, error) {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		return &domain.Message{
			ID:             domain.MessageID(snap.Ref.ID),
			ConversationID: conv,
			Text:           doc.Text,
			CreatedAt:      doc.CreatedAt,
			Author: domain.Author{
				ID:   domain.UserID(doc.User.ID),
				Name: doc.User.Name,
			},
		}, nil
	}
}

func decodeListing(snap *firestore.DocumentSnapshot) (*domain.Listing, error) {
	var doc rentalDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode rentalDoc: %w", err)
	}
	return &domain.Listing{
		ID:        domain.ListingID(snap.Ref.ID),
		Title:     doc.Title,
		PostedBy:  domain.UserID(doc.PostedBy),
		Timestamp: doc.Timestamp,
	}, nil
}

// ─────────────────────────────────────────
// MessageLog implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		User: authorDoc{
			ID:   string(msg.Author.ID),
			Name: msg.Author.Name,
		},
	}

	_, err := s.messagesCol(msg.ConversationID).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// WatchMessages listens to the messages subcollection. Equal timestamps are
// ordered by document id.
func (s *Store) WatchMessages(ctx context.Context, id domain.ConversationID, limit int) (domain.Stream[*domain.Message], error) {
	if id == "" {
		return nil, domain.ErrInvalidConversation
	}

	q := s.messagesCol(id).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return watchQuery(ctx, q, decodeMessage(id)), nil
}

// ─────────────────────────────────────────
// ConversationStore implementation
// ─────────────────────────────────────────

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	snap, err := s.chatDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetConversation: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetConversation decode: %w", err)
	}

	return &domain.Conversation{
		ID:              id,
		SenderID:        domain.UserID(doc.SenderID),
		ReceiverID:      domain.UserID(doc.ReceiverID),
		LastMessage:     doc.LastMessage,
		LastMessageTime: doc.LastMessageTime,
	}, nil
}

// UpdateSummary merges the summary fields into chats/{id}, creating the
// document the first time a conversation gets a message.
func (s *Store) UpdateSummary(ctx context.Context, conv *domain.Conversation) error {
	doc := map[string]interface{}{
		"lastMessage":     conv.LastMessage,
		"lastMessageTime": conv.LastMessageTime,
	}
	if conv.SenderID != "" {
		doc["senderId"] = string(conv.SenderID)
	}
	if conv.ReceiverID != "" {
		doc["receiverId"] = string(conv.ReceiverID)
	}

	_, err := s.chatDoc(conv.ID).Set(ctx, doc, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore UpdateSummary: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.ParticipantProfile, error) {
	snap, err := s.userDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetProfile: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetProfile decode: %w", err)
	}

	return &domain.ParticipantProfile{
		ID:       id,
		Name:     doc.Name,
		PhotoURL: doc.PhotoURL,
	}, nil
}

// ─────────────────────────────────────────
// BookingLedger implementation
// ─────────────────────────────────────────

func (s *Store) AppendBookingRequest(ctx context.Context, ledger domain.Ledger, req *domain.BookingRequest) error {
	doc := bookingDoc{
		RequesterID: string(req.RequesterID),
		RecipientID: string(req.RecipientID),
		Message:     req.Message,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
	}

	ref := s.ledgerCol(ledger).NewDoc()
	if req.ID != "" {
		ref = s.ledgerCol(ledger).Doc(string(req.ID))
	}

	if _, err := ref.Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendBookingRequest(%s): %w", ledger, err)
	}
	if req.ID == "" {
		req.ID = domain.BookingRequestID(ref.ID)
	}
	return nil
}

// ListBookingRequests returns the newest matching requests, oldest first.
func (s *Store) ListBookingRequests(ctx context.Context, ledger domain.Ledger, filter domain.BookingFilter) ([]*domain.BookingRequest, error) {
	q := s.ledgerCol(ledger).Query
	if filter.RequesterID != "" {
		q = q.Where("requesterId", "==", string(filter.RequesterID))
	}
	if filter.RecipientID != "" {
		q = q.Where("recipientId", "==", string(filter.RecipientID))
	}
	q = q.OrderBy("createdAt", firestore.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.BookingRequest{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListBookingRequests: %w", err)
		}

		var doc bookingDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode bookingDoc: %w", err)
		}

		out = append(out, &domain.BookingRequest{
			ID:          domain.BookingRequestID(snap.Ref.ID),
			RequesterID: domain.UserID(doc.RequesterID),
			RecipientID: domain.UserID(doc.RecipientID),
			Message:     doc.Message,
			Status:      domain.BookingStatus(doc.Status),
			CreatedAt:   doc.CreatedAt,
		})
	}

	// queried newest first so that the limit keeps the latest ones
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ─────────────────────────────────────────
// ListingFeed implementation
// ─────────────────────────────────────────

func (s *Store) WatchLatestListings(ctx context.Context, limit int) (domain.Stream[*domain.Listing], error) {
	q := s.rentalsCol().OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return watchQuery(ctx, q, decodeListing), nil
}

// ─────────────────────────────────────────
// Snapshot streams
// ─────────────────────────────────────────

// queryIterator is the part of *firestore.QuerySnapshotIterator a stream uses.
type queryIterator interface {
	Next() (*firestore.QuerySnapshot, error)
	Stop()
}

type snapshotStream[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	it     queryIterator
	decode func(*firestore.DocumentSnapshot) (T, error)
	done   bool
}

// watchQuery turns a query snapshot listener into a domain.Stream.
// Stop only cancels the listener context: the iterator itself must not be
// stopped concurrently with Next, so Next releases it once it unblocks.
func watchQuery[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error)) *snapshotStream[T] {
	sctx, cancel := context.WithCancel(ctx)
	return newSnapshotStream(sctx, cancel, q.Snapshots(sctx), decode)
}

func newSnapshotStream[T any](ctx context.Context, cancel context.CancelFunc, it queryIterator, decode func(*firestore.DocumentSnapshot) (T, error)) *snapshotStream[T] {
	return &snapshotStream[T]{ctx: ctx, cancel: cancel, it: it, decode: decode}
}

// Next fails at most once: any error releases the listener and later calls
// report ErrStreamClosed.
func (s *snapshotStream[T]) Next() (*domain.Batch[T], error) {
	if s.done {
		return nil, domain.ErrStreamClosed
	}

	qs, err := s.it.Next()
	if err != nil {
		closed := errors.Is(err, iterator.Done) || s.ctx.Err() != nil || status.Code(err) == codes.Canceled
		s.close()
		if closed {
			return nil, domain.ErrStreamClosed
		}
		return nil, fmt.Errorf("firestore snapshot: %w", err)
	}

	batch, err := s.toBatch(qs)
	if err != nil {
		s.close()
		return nil, err
	}
	return batch, nil
}

func (s *snapshotStream[T]) toBatch(qs *firestore.QuerySnapshot) (*domain.Batch[T], error) {
	docs, err := qs.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore snapshot documents: %w", err)
	}

	batch := &domain.Batch[T]{
		Items:  make([]T, 0, len(docs)),
		ReadAt: qs.ReadTime,
	}
	for _, d := range docs {
		item, err := s.decode(d)
		if err != nil {
			return nil, err
		}
		batch.Items = append(batch.Items, item)
	}

	for _, ch := range qs.Changes {
		item, err := s.decode(ch.Doc)
		if err != nil {
			return nil, err
		}
		batch.Changes = append(batch.Changes, domain.Change[T]{
			Kind: changeKind(ch.Kind),
			Item: item,
		})
	}
	return batch, nil
}

func (s *snapshotStream[T]) Stop() {
	s.cancel()
}

func (s *snapshotStream[T]) close() {
	s.done = true
	s.it.Stop()
	s.cancel()
}

func changeKind(k firestore.DocumentChangeKind) domain.ChangeKind {
	switch k {
	case firestore.DocumentRemoved:
		return domain.ChangeRemoved
	case firestore.DocumentModified:
		return domain.ChangeModified
	default:
		return domain.ChangeAdded
	}
}
