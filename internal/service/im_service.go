package service

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/mongo"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const TableMessages = "messages"

// IMService 情侣空间聊天，以 messages 表的形式暴露
type IMService interface {
	Table
	Close()
}

type imServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	publisher   realtime.Publisher
	retryChan   chan *mongo.Message
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewIMService 构造函数：初始化服务并启动异步校准工作池
func NewIMService(convRepo repository.ConversationRepo, messageRepo mongo.MessageRepo, publisher realtime.Publisher) IMService {
	s := &imServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		retryChan:   make(chan *mongo.Message, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

func (s *imServiceImpl) Name() string { return TableMessages }

// Select 支持 id、sender_id 与 seq 游标，按 seq 排序
func (s *imServiceImpl) Select(ctx context.Context, scope Scope, q Query) (any, error) {
	conv, err := s.conversation(ctx, scope)
	if err != nil {
		return nil, err
	}
	mq, err := messageQuery(q)
	if err != nil {
		return nil, err
	}
	mq.ConversationID = conv.ID
	return s.messageRepo.FindMessages(ctx, mq)
}

// Insert 发送消息
func (s *imServiceImpl) Insert(ctx context.Context, scope Scope, body []byte) (any, error) {
	req := &dto.SendMessageReq{}
	if err := decodeBody(body, req); err != nil {
		return nil, err
	}
	if req.MsgType == 0 {
		req.MsgType = consts.MsgTypeText
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.MsgType == consts.MsgTypeText && req.Content == "" {
		return nil, ErrMessageEmpty
	}
	if req.MsgType == consts.MsgTypeImage && len(req.Payload) == 0 {
		return nil, ErrMessageEmpty
	}

	conv, err := s.conversation(ctx, scope)
	if err != nil {
		return nil, err
	}

	// MySQL 原子定序
	preview := req.Content
	if preview == "" {
		preview = "[图片]"
	}
	newSeq, err := s.convRepo.IncrMaxSeq(ctx, conv.ID, util.Preview(preview, 255), scope.UserID)
	if err != nil {
		return nil, err
	}

	msg := &mongo.Message{
		ID:             primitive.NewObjectID().Hex(),
		ConversationID: conv.ID,
		CoupleID:       scope.CoupleID,
		SenderID:       scope.UserID,
		MsgType:        req.MsgType,
		Content:        req.Content,
		Seq:            newSeq,
		ClientID:       req.ClientID,
		CreatedAt:      time.Now(),
	}
	for _, p := range req.Payload {
		msg.Payload = append(msg.Payload, mongo.Payload{
			MimeType: p.MimeType,
			MediaURL: p.MediaURL,
			Width:    p.Width,
			Height:   p.Height,
		})
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err = s.messageRepo.SaveMessage(writeCtx, msg); err != nil {
		log.WarnContext(ctx, "save message failed, queued for retry", "seq", newSeq, "err", err)
		select {
		case s.retryChan <- msg:
		default:
			log.ErrorContext(ctx, "message retry queue full", "id", msg.ID)
		}
	}

	publishChange(s.publisher, TableMessages, realtime.Insert, scope.CoupleID, false, msg, nil)
	return msg, nil
}

func (s *imServiceImpl) Update(context.Context, Scope, rowfilter.Filter, []byte) (int64, error) {
	return 0, ErrMethodNotAllowed
}

// Delete 撤回自己发送的消息，过滤条件为 id=eq.<hex>
func (s *imServiceImpl) Delete(ctx context.Context, scope Scope, filter rowfilter.Filter) (int64, error) {
	id, ok := filter.Lookup("id")
	if !ok || id == "" {
		return 0, ErrParamInvalid
	}
	msg, err := s.messageRepo.GetMessage(ctx, id)
	if errors.Is(err, mongo.ErrMessageNotFound) || (err == nil && (msg.CoupleID != scope.CoupleID || msg.Deleted)) {
		return 0, ErrMessageNotFound
	}
	if err != nil {
		return 0, err
	}
	if msg.SenderID != scope.UserID {
		return 0, UnauthorizedError
	}
	if err = s.messageRepo.MarkDeleted(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrMessageNotFound) {
			return 0, ErrMessageNotFound
		}
		return 0, err
	}
	publishChange(s.publisher, TableMessages, realtime.Delete, scope.CoupleID, false, nil, msg)
	return 1, nil
}

func (s *imServiceImpl) conversation(ctx context.Context, scope Scope) (*model.Conversation, error) {
	conv, err := s.convRepo.GetConversationByCouple(ctx, scope.CoupleID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversation
	}
	return conv, nil
}

// messageQuery 将通用过滤条件翻译为 seq 游标
func messageQuery(q Query) (*mongo.MessageQuery, error) {
	mq := &mongo.MessageQuery{Limit: q.Limit}
	if mq.Limit <= 0 || mq.Limit > repository.MaxPageSize {
		mq.Limit = repository.MaxPageSize
	}
	switch q.Order.Column {
	case "", "seq":
		mq.Desc = q.Order.Desc
	default:
		return nil, ErrParamInvalid
	}

	for _, c := range q.Filter {
		switch c.Column {
		case "id":
			if c.Op != rowfilter.OpEq {
				return nil, ErrParamInvalid
			}
			mq.ID = c.Value
		case "sender_id":
			id, ok := util.ParseID(c.Value)
			if !ok || c.Op != rowfilter.OpEq {
				return nil, ErrParamInvalid
			}
			mq.SenderID = id
		case "seq":
			seq, ok := util.ParseID(c.Value)
			if !ok {
				return nil, ErrParamInvalid
			}
			switch c.Op {
			case rowfilter.OpLt:
				mq.BeforeSeq = seq
			case rowfilter.OpLte:
				mq.BeforeSeq = seq + 1
			case rowfilter.OpGt:
				mq.AfterSeq = seq
			case rowfilter.OpGte:
				if seq > 1 {
					mq.AfterSeq = seq - 1
				}
			default:
				return nil, ErrParamInvalid
			}
		case "couple_id", "conversation_id":
			// 会话由请求方身份决定
		default:
			return nil, ErrParamInvalid
		}
	}
	return mq, nil
}

func (s *imServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("IMService shut down gracefully")
}

func (s *imServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := time.Second
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					break
				}
				log.Warn("retry save message failed", "id", msg.ID, "attempt", i+1, "err", err)
				time.Sleep(backoff)
				backoff *= 2
			}
		case <-s.stopChan:
			return
		}
	}
}
