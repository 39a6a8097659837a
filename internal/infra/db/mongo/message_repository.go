package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "stitchtalk/internal/domain/chat"
	"stitchtalk/internal/domain/identity"
)

// MessageRepository persists the chat log in the messages collection.
type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

func (r *MessageRepository) Append(ctx context.Context, msg domainchat.Message) (*domainchat.Message, error) {
	doc := messageDocument{
		ID:             primitive.NewObjectID(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.Sender.ID,
		SenderKind:     string(msg.Sender.Kind),
		RecipientID:    msg.Recipient.ID,
		RecipientKind:  string(msg.Recipient.Kind),
		Text:           msg.Text,
		Read:           false,
		CreatedAt:      time.Now().UTC().UnixMilli(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo: append message: %w", err)
	}
	stored := doc.toDomain()
	return &stored, nil
}

func (r *MessageRepository) ByID(ctx context.Context, messageID string) (*domainchat.Message, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: load message: %w", err)
	}
	msg := doc.toDomain()
	return &msg, nil
}

// MarkRead is a single targeted update, atomic per message id, so
// concurrent read-markings from multiple tabs converge.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) (*domainchat.Message, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, domainchat.ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"read": true}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: mark read: %w", err)
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (r *MessageRepository) Conversation(ctx context.Context, userA, userB string) ([]domainchat.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "recipient_id": userB},
		bson.M{"sender_id": userB, "recipient_id": userA},
	}}
	// Ascending for natural reading order; _id breaks timestamp ties
	// in insertion order.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list conversation: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domainchat.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode message: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate conversation: %w", err)
	}
	return out, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"recipient_id": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("mongo: count unread: %w", err)
	}
	return count, nil
}

type messageDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	ConversationID string             `bson:"conversation_id"`
	SenderID       string             `bson:"sender_id"`
	SenderKind     string             `bson:"sender_kind"`
	RecipientID    string             `bson:"recipient_id"`
	RecipientKind  string             `bson:"recipient_kind"`
	Text           string             `bson:"text"`
	Read           bool               `bson:"read"`
	CreatedAt      int64              `bson:"created_at"`
}

func (d messageDocument) toDomain() domainchat.Message {
	return domainchat.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		Sender:         identity.Ref{ID: d.SenderID, Kind: identity.Kind(d.SenderKind)},
		Recipient:      identity.Ref{ID: d.RecipientID, Kind: identity.Kind(d.RecipientKind)},
		Text:           d.Text,
		Read:           d.Read,
		CreatedAt:      time.UnixMilli(d.CreatedAt).UTC(),
	}
}

var _ domainchat.Store = (*MessageRepository)(nil)
