package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

const messageCollection = "messages"

// messageDoc is the stored shape of a message. UUIDs are kept as their
// canonical strings so filters stay readable and index-friendly.
type messageDoc struct {
	ID            string    `bson:"_id"`
	SenderID      string    `bson:"sender_id"`
	ReceiverID    string    `bson:"receiver_id"`
	Content       string    `bson:"content"`
	SenderContent string    `bson:"sender_content,omitempty"`
	Kind          string    `bson:"kind"`
	Status        string    `bson:"status"`
	IsDeleted     bool      `bson:"is_deleted"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toDoc(m *domain.Message) *messageDoc {
	return &messageDoc{
		ID:            m.ID,
		SenderID:      m.SenderID.String(),
		ReceiverID:    m.ReceiverID.String(),
		Content:       m.Payload.ForReceiver,
		SenderContent: m.Payload.ForSender,
		Kind:          string(m.Kind),
		Status:        string(m.Status),
		IsDeleted:     m.IsDeleted,
		CreatedAt:     m.CreatedAt,
	}
}

func (d *messageDoc) toDomain() (*domain.Message, error) {
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, fmt.Errorf("parse sender id %q: %w", d.SenderID, err)
	}
	receiverID, err := uuid.Parse(d.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("parse receiver id %q: %w", d.ReceiverID, err)
	}
	return &domain.Message{
		ID:         d.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Payload:    domain.Payload{ForReceiver: d.Content, ForSender: d.SenderContent},
		Kind:       domain.MessageKind(d.Kind),
		Status:     domain.MessageStatus(d.Status),
		IsDeleted:  d.IsDeleted,
		CreatedAt:  d.CreatedAt,
	}, nil
}

// MessageRepository handles database operations for chat messages.
type MessageRepository struct {
	DB *mongo.Database
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{DB: db}
}

// Insert persists a new message and assigns its id. This is the durability
// boundary of a send: nothing is emitted to the network before it returns.
func (r *MessageRepository) Insert(ctx context.Context, message *domain.Message) error {
	if message.ID == "" {
		message.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.DB.Collection(messageCollection).InsertOne(ctx, toDoc(message))
	return err
}

// GetByID retrieves a message. A missing id yields (nil, nil).
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var doc messageDoc
	err := r.DB.Collection(messageCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain()
}

// UpdateStatus conditionally advances a message's status. The filter on the
// current status makes concurrent advances race safely: exactly one wins.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, from []domain.MessageStatus, to domain.MessageStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	res, err := r.DB.Collection(messageCollection).UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": fromStrs}},
		bson.M{"$set": bson.M{"status": string(to)}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// FindConversation returns one page of the conversation between two users in
// chronological order, newest page first, soft-deleted messages excluded.
func (r *MessageRepository) FindConversation(ctx context.Context, a, b uuid.UUID, page, limit int64) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": a.String(), "receiver_id": b.String()},
			{"sender_id": b.String(), "receiver_id": a.String()},
		},
		"is_deleted": false,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.DB.Collection(messageCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	// Cursor order is newest-first; flip to chronological for display.
	messages := make([]*domain.Message, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		m, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// MarkConversationRead advances every sent/delivered message from sender to
// receiver to read as one batch and returns the affected ids.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, sender, receiver uuid.UUID) ([]string, error) {
	coll := r.DB.Collection(messageCollection)
	filter := bson.M{
		"sender_id":   sender.String(),
		"receiver_id": receiver.String(),
		"status":      bson.M{"$in": []string{string(domain.StatusSent), string(domain.StatusDelivered)}},
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var idDocs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &idDocs); err != nil {
		return nil, err
	}
	if len(idDocs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(idDocs))
	for i, d := range idDocs {
		ids[i] = d.ID
	}
	_, err = coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"status": string(domain.StatusRead)}},
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindRecentPerCounterparty aggregates the conversation list: for each user
// the requester has exchanged messages with, the latest message and the
// count of their messages still unread.
func (r *MessageRepository) FindRecentPerCounterparty(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	me := userID.String()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or":        []bson.M{{"sender_id": me}, {"receiver_id": me}},
			"is_deleted": false,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", me}},
				"$receiver_id",
				"$sender_id",
			}},
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", me}},
					bson.M{"$in": bson.A{"$status", bson.A{string(domain.StatusSent), string(domain.StatusDelivered)}}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := r.DB.Collection(messageCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID          string     `bson:"_id"`
		LastMessage messageDoc `bson:"last_message"`
		UnreadCount int64      `bson:"unread_count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	summaries := make([]*domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		counterparty, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("parse counterparty id %q: %w", row.ID, err)
		}
		last, err := row.LastMessage.toDomain()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &domain.ConversationSummary{
			Counterparty: counterparty,
			LastMessage:  last,
			UnreadCount:  row.UnreadCount,
		})
	}
	return summaries, nil
}

// SoftDelete flags a message deleted if the requester participates in it.
// Messages are never physically removed.
func (r *MessageRepository) SoftDelete(ctx context.Context, id string, requester uuid.UUID) (bool, error) {
	me := requester.String()
	res, err := r.DB.Collection(messageCollection).UpdateOne(ctx,
		bson.M{
			"_id":        id,
			"is_deleted": false,
			"$or":        []bson.M{{"sender_id": me}, {"receiver_id": me}},
		},
		bson.M{"$set": bson.M{"is_deleted": true}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
