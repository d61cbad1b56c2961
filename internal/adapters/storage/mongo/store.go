package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// Store keeps the chat collections in MongoDB. Live queries rely on change
// streams, so the server must run as a replica set.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and opens database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s := NewStore(client.Database(database))
	s.client = client
	return s, nil
}

// NewStore uses db and makes sure the query indexes exist.
func NewStore(db *mongo.Database) *Store {
	s := &Store{db: db}

	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("chat_created_idx"),
	}
	_, _ = s.messages().Indexes().CreateOne(context.Background(), ix)

	for _, ledger := range []domain.Ledger{domain.LedgerGlobal, domain.LedgerTenant} {
		_, _ = s.ledger(ledger).Indexes().CreateMany(context.Background(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "requesterId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		})
	}
	return s
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) chats() *mongo.Collection    { return s.db.Collection("chats") }
func (s *Store) messages() *mongo.Collection { return s.db.Collection("messages") }
func (s *Store) users() *mongo.Collection    { return s.db.Collection("users") }
func (s *Store) rentals() *mongo.Collection  { return s.db.Collection("rentals") }

func (s *Store) ledger(l domain.Ledger) *mongo.Collection {
	return s.db.Collection(string(l))
}

type chatDoc struct {
	ID              string    `bson:"_id"`
	SenderID        string    `bson:"senderId,omitempty"`
	ReceiverID      string    `bson:"receiverId,omitempty"`
	LastMessage     string    `bson:"lastMessage"`
	LastMessageTime time.Time `bson:"lastMessageTime"`
}

type authorDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	ChatID    string    `bson:"chatId"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
	User      authorDoc `bson:"user"`
}

type userDoc struct {
	ID       string  `bson:"_id"`
	Name     string  `bson:"name"`
	PhotoURL *string `bson:"photoURL,omitempty"`
}

type bookingDoc struct {
	ID          string    `bson:"_id"`
	RequesterID string    `bson:"requesterId"`
	RecipientID string    `bson:"recipientId"`
	Message     string    `bson:"message"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type rentalDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	PostedBy  string    `bson:"postedBy"`
	Timestamp time.Time `bson:"timestamp"`
}

func (d messageDoc) toDomain() *domain.Message {
	return &domain.Message{
		ID:             domain.MessageID(d.ID),
		ConversationID: domain.ConversationID(d.ChatID),
		Text:           d.Text,
		CreatedAt:      d.CreatedAt,
		Author:         domain.Author{ID: domain.UserID(d.User.ID), Name: d.User.Name},
	}
}

func (d rentalDoc) toDomain() *domain.Listing {
	return &domain.Listing{
		ID:        domain.ListingID(d.ID),
		Title:     d.Title,
		PostedBy:  domain.UserID(d.PostedBy),
		Timestamp: d.Timestamp,
	}
}

func (d bookingDoc) toDomain() *domain.BookingRequest {
	return &domain.BookingRequest{
		ID:          domain.BookingRequestID(d.ID),
		RequesterID: domain.UserID(d.RequesterID),
		RecipientID: domain.UserID(d.RecipientID),
		Message:     d.Message,
		Status:      domain.BookingStatus(d.Status),
		CreatedAt:   d.CreatedAt,
	}
}

// ─────────────────────────────────────────
// MessageLog implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		ID:        string(msg.ID),
		ChatID:    string(msg.ConversationID),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		User:      authorDoc{ID: string(msg.Author.ID), Name: msg.Author.Name},
	}
	if _, err := s.messages().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) WatchMessages(ctx context.Context, id domain.ConversationID, limit int) (domain.Stream[*domain.Message], error) {
	if id == "" {
		return nil, domain.ErrInvalidConversation
	}

	// deletes carry no document, so every delete triggers a re-query
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.chatId": string(id)},
			bson.M{"operationType": "delete"},
		}}}},
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	load := func(ctx context.Context) ([]*domain.Message, error) {
		return findAll(ctx, s.messages(), bson.M{"chatId": string(id)}, opts, messageDoc.toDomain)
	}

	return watchCollection(ctx, s.messages(), pipeline, load, messageKey, sameMessage)
}

func messageKey(m *domain.Message) string { return string(m.ID) }

func sameMessage(a, b *domain.Message) bool { return *a == *b }

// ─────────────────────────────────────────
// ConversationStore implementation
// ─────────────────────────────────────────

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var doc chatDoc
	if err := s.chats().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongo GetConversation: %w", err)
	}
	return &domain.Conversation{
		ID:              id,
		SenderID:        domain.UserID(doc.SenderID),
		ReceiverID:      domain.UserID(doc.ReceiverID),
		LastMessage:     doc.LastMessage,
		LastMessageTime: doc.LastMessageTime,
	}, nil
}

func (s *Store) UpdateSummary(ctx context.Context, conv *domain.Conversation) error {
	set := bson.M{
		"lastMessage":     conv.LastMessage,
		"lastMessageTime": conv.LastMessageTime,
	}
	if conv.SenderID != "" {
		set["senderId"] = string(conv.SenderID)
	}
	if conv.ReceiverID != "" {
		set["receiverId"] = string(conv.ReceiverID)
	}

	_, err := s.chats().UpdateByID(ctx, string(conv.ID), bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo UpdateSummary: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.ParticipantProfile, error) {
	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongo GetProfile: %w", err)
	}
	return &domain.ParticipantProfile{ID: id, Name: doc.Name, PhotoURL: doc.PhotoURL}, nil
}

// ─────────────────────────────────────────
// BookingLedger implementation
// ─────────────────────────────────────────

func (s *Store) AppendBookingRequest(ctx context.Context, ledger domain.Ledger, req *domain.BookingRequest) error {
	doc := bookingDoc{
		ID:          string(req.ID),
		RequesterID: string(req.RequesterID),
		RecipientID: string(req.RecipientID),
		Message:     req.Message,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
	}
	if _, err := s.ledger(ledger).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo AppendBookingRequest(%s): %w", ledger, err)
	}
	return nil
}

// ListBookingRequests returns the newest matching requests, oldest first.
func (s *Store) ListBookingRequests(ctx context.Context, ledger domain.Ledger, filter domain.BookingFilter) ([]*domain.BookingRequest, error) {
	q := bson.M{}
	if filter.RequesterID != "" {
		q["requesterId"] = string(filter.RequesterID)
	}
	if filter.RecipientID != "" {
		q["recipientId"] = string(filter.RecipientID)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	out, err := findAll(ctx, s.ledger(ledger), q, opts, bookingDoc.toDomain)
	if err != nil {
		return nil, fmt.Errorf("mongo ListBookingRequests: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ─────────────────────────────────────────
// ListingFeed implementation
// ─────────────────────────────────────────

func (s *Store) WatchLatestListings(ctx context.Context, limit int) (domain.Stream[*domain.Listing], error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	load := func(ctx context.Context) ([]*domain.Listing, error) {
		return findAll(ctx, s.rentals(), bson.M{}, opts, rentalDoc.toDomain)
	}
	return watchCollection(ctx, s.rentals(), mongo.Pipeline{}, load,
		func(l *domain.Listing) string { return string(l.ID) },
		func(a, b *domain.Listing) bool { return *a == *b },
	)
}

func findAll[D any, T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions, conv func(D) T) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []T{}
	for cur.Next(ctx) {
		var d D
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, conv(d))
	}
	return out, cur.Err()
}
