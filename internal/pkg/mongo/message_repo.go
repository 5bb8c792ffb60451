package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	FindMessages(ctx context.Context, q *MessageQuery) ([]*Message, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	MarkDeleted(ctx context.Context, id string) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// EnsureIndexes 会话内按 seq 唯一，重试写入不会产生重复消息
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("message").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// SaveMessage 将消息存入 MongoDB，重复写入视为成功
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.col.InsertOne(ctx, msg)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// MessageQuery 会话内的消息查询，零值字段不参与过滤
type MessageQuery struct {
	ConversationID uint64
	ID             string
	SenderID       uint64
	BeforeSeq      uint64
	AfterSeq       uint64
	Limit          int
	Desc           bool
}

// FindMessages 按 seq 游标分页
func (s *messageRepoImpl) FindMessages(ctx context.Context, q *MessageQuery) ([]*Message, error) {
	filter := bson.M{"conversation_id": q.ConversationID, "deleted": bson.M{"$ne": true}}
	if q.ID != "" {
		filter["_id"] = q.ID
	}
	if q.SenderID > 0 {
		filter["sender_id"] = q.SenderID
	}

	seqCond := bson.M{}
	if q.BeforeSeq > 0 {
		seqCond["$lt"] = q.BeforeSeq
	}
	if q.AfterSeq > 0 {
		seqCond["$gt"] = q.AfterSeq
	}
	if len(seqCond) > 0 {
		filter["seq"] = seqCond
	}

	direction := 1
	if q.Desc {
		direction = -1
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "seq", Value: direction}}).
		SetLimit(int64(q.Limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetMessage 按 ID 精确查询
func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkDeleted 撤回消息，保留 seq 占位
func (s *messageRepoImpl) MarkDeleted(ctx context.Context, id string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}
