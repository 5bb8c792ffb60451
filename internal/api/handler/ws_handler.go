package handler

import (
	"Keepsake/internal/api/config"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/metrics"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/service"
	"context"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	vaultSvc     service.VaultService
	tables       map[string]bool
	writeTimeout time.Duration
	pingInterval time.Duration
	maxSubs      int
}

func NewWsHandler(restSvc service.RestService, vaultSvc service.VaultService, cfg config.RealtimeConfig) *WsHandler {
	tables := make(map[string]bool)
	for _, name := range restSvc.Tables() {
		tables[name] = true
	}
	s := &WsHandler{
		vaultSvc:     vaultSvc,
		tables:       tables,
		writeTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		pingInterval: time.Duration(cfg.PingIntervalSeconds) * time.Second,
		maxSubs:      cfg.MaxSubscriptions,
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}
	if s.pingInterval <= 0 {
		s.pingInterval = 30 * time.Second
	}
	return s
}

// Connect 建立实时连接：订阅情侣空间频道，按会话内的订阅表转发变更
func (s *WsHandler) Connect(c *gin.Context) {
	scope := scopeOf(c)
	if err := scope.Paired(); err != nil {
		response.Error(c, err)
		return
	}

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 订阅 Redis 总线
	pubsub := redis.Subscribe(ctx, realtime.Channel(consts.RealtimeCoupleKey, scope.CoupleID))
	defer func() {
		_ = pubsub.Close()
	}()

	log.Info("用户 WS 连接已建立", "userID", scope.UserID, "coupleID", scope.CoupleID)

	registry := realtime.NewRegistry(s.maxSubs)
	replies := make(chan realtime.ServerFrame, 16)
	stopChan := make(chan struct{})

	_ = conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	// 读循环：处理订阅控制帧，出错即断开
	go func() {
		defer close(stopChan)
		for {
			var frame realtime.ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
			reply := s.handleFrame(ctx, scope, registry, &frame)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}()

	// 写循环：唯一写者，串行推送控制回复、变更与心跳
	redisCh := pubsub.Channel()
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			if err := s.forward(conn, registry, []byte(msg.Payload)); err != nil {
				log.Warn("WS 推送失败", "userID", scope.UserID, "err", err)
				return
			}
		case reply := <-replies:
			if err := s.write(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		case <-stopChan:
			log.Info("用户 WS 连接已断开", "userID", scope.UserID)
			return
		}
	}
}

func (s *WsHandler) handleFrame(ctx context.Context, scope service.Scope, registry *realtime.Registry, frame *realtime.ClientFrame) realtime.ServerFrame {
	switch frame.Action {
	case realtime.ActionPing:
		return realtime.ServerFrame{Type: realtime.FramePong}
	case realtime.ActionUnsubscribe:
		if !registry.Remove(frame.Topic) {
			return errorFrame(frame.Topic, "topic not subscribed")
		}
		return realtime.ServerFrame{Type: realtime.FrameAck, Topic: frame.Topic}
	case realtime.ActionSubscribe:
		if frame.Topic == "" || !s.tables[frame.Table] {
			return errorFrame(frame.Topic, realtime.ErrUnknownTable.Error())
		}
		filter, err := rowfilter.ParseString(frame.Filter)
		if err != nil {
			return errorFrame(frame.Topic, err.Error())
		}
		sub := &realtime.Subscription{Topic: frame.Topic, Table: frame.Table, Filter: filter}
		if frame.VaultToken != "" {
			until, err := s.vaultSvc.Session(ctx, scope.CoupleID, frame.VaultToken)
			if err != nil {
				return errorFrame(frame.Topic, service.UnExpectedError.Error())
			}
			sub.VaultUntil = until
		}
		if err = registry.Add(sub); err != nil {
			return errorFrame(frame.Topic, err.Error())
		}
		return realtime.ServerFrame{Type: realtime.FrameAck, Topic: frame.Topic}
	}
	return errorFrame(frame.Topic, "unknown action")
}

// forward 按订阅匹配后逐个 topic 推送
func (s *WsHandler) forward(conn *websocket.Conn, registry *realtime.Registry, payload []byte) error {
	var evt realtime.ChangeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		return nil
	}
	for _, topic := range registry.Match(&evt, time.Now()) {
		frame := realtime.ServerFrame{Type: realtime.FrameChange, Topic: topic, ChangeEvent: &evt}
		if err := s.write(conn, frame); err != nil {
			metrics.EventsDropped.WithLabelValues("write").Inc()
			return err
		}
		metrics.EventsDelivered.WithLabelValues(evt.Table).Inc()
	}
	return nil
}

func (s *WsHandler) write(conn *websocket.Conn, frame realtime.ServerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func errorFrame(topic, message string) realtime.ServerFrame {
	return realtime.ServerFrame{Type: realtime.FrameError, Topic: topic, Message: message}
}
