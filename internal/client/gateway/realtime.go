package gateway

import (
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	log "log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const writeWait = 10 * time.Second

// Event 一条行级变更，New/Old 保持原始 JSON
type Event struct {
	Table     string
	EventType realtime.EventType
	New       Row
	Old       Row
	CommitTS  int64
}

// Handler 在连接的读循环中串行调用，不应阻塞
type Handler func(Event)

type inboundFrame struct {
	Type      string             `json:"type"`
	Topic     string             `json:"topic"`
	Message   string             `json:"message"`
	Table     string             `json:"table"`
	EventType realtime.EventType `json:"eventType"`
	New       json.RawMessage    `json:"new"`
	Old       json.RawMessage    `json:"old"`
	CommitTS  int64              `json:"commit_ts"`
}

// Subscription 订阅句柄，Unsubscribe 必须且只能调用一次
type Subscription struct {
	topic     string
	rt        *realtimeConn
	cancelled atomic.Bool
}

func (s *Subscription) Topic() string { return s.topic }

// Unsubscribe 第二次调用返回 ErrAlreadyUnsubscribed 且不发送任何帧
func (s *Subscription) Unsubscribe() error {
	if !s.cancelled.CompareAndSwap(false, true) {
		return ErrAlreadyUnsubscribed
	}
	s.rt.remove(s.topic)
	return s.rt.send(realtime.ClientFrame{Action: realtime.ActionUnsubscribe, Topic: s.topic})
}

// Subscribe 订阅表的变更，filter 语法与 Select 相同
func (c *Client) Subscribe(ctx context.Context, table string, filter rowfilter.Filter, onEvent Handler) (*Subscription, error) {
	rt, err := c.realtime(ctx)
	if err != nil {
		return nil, err
	}
	_, vault := c.session()
	topic := table + ":" + uuid.NewString()
	frame := realtime.ClientFrame{
		Action:     realtime.ActionSubscribe,
		Topic:      topic,
		Table:      table,
		Filter:     filter.String(),
		VaultToken: vault,
	}
	if err = rt.subscribe(ctx, frame, onEvent); err != nil {
		return nil, err
	}
	return &Subscription{topic: topic, rt: rt}, nil
}

func (c *Client) realtime(ctx context.Context) (*realtimeConn, error) {
	c.rtMu.Lock()
	defer c.rtMu.Unlock()
	if c.rt != nil && !c.rt.isClosed() {
		return c.rt, nil
	}
	token, _ := c.session()
	if token == "" {
		return nil, ErrAuth
	}
	wsURL, err := realtimeURL(c.baseURL, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 401 {
			return nil, ErrAuth
		}
		return nil, errors.Wrap(err, "dial realtime")
	}
	c.rt = newRealtimeConn(conn)
	return c.rt, nil
}

func realtimeURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse gateway url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/realtime"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// realtimeConn 一条 websocket 上按 topic 复用多个订阅
type realtimeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]Handler
	acks     map[string]chan error
	closed   bool
	done     chan struct{}
}

func newRealtimeConn(conn *websocket.Conn) *realtimeConn {
	rt := &realtimeConn{
		conn:     conn,
		handlers: make(map[string]Handler),
		acks:     make(map[string]chan error),
		done:     make(chan struct{}),
	}
	go rt.readLoop()
	return rt
}

func (rt *realtimeConn) subscribe(ctx context.Context, frame realtime.ClientFrame, h Handler) error {
	ack := make(chan error, 1)
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return ErrClosed
	}
	rt.handlers[frame.Topic] = h
	rt.acks[frame.Topic] = ack
	rt.mu.Unlock()

	fail := func(err error) error {
		rt.mu.Lock()
		delete(rt.handlers, frame.Topic)
		delete(rt.acks, frame.Topic)
		rt.mu.Unlock()
		return err
	}
	if err := rt.send(frame); err != nil {
		return fail(err)
	}
	select {
	case err := <-ack:
		if err != nil {
			return fail(err)
		}
		return nil
	case <-rt.done:
		return fail(ErrClosed)
	case <-ctx.Done():
		return fail(ctx.Err())
	}
}

func (rt *realtimeConn) remove(topic string) {
	rt.mu.Lock()
	delete(rt.handlers, topic)
	rt.mu.Unlock()
}

func (rt *realtimeConn) send(frame realtime.ClientFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	rt.writeMu.Lock()
	defer rt.writeMu.Unlock()
	if rt.isClosed() {
		return ErrClosed
	}
	_ = rt.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = rt.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write realtime frame")
	}
	return nil
}

func (rt *realtimeConn) readLoop() {
	defer rt.shutdown()
	for {
		_, data, err := rt.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err = json.Unmarshal(data, &frame); err != nil {
			log.Debug("drop malformed realtime frame", "err", err)
			continue
		}
		switch frame.Type {
		case realtime.FrameAck, realtime.FrameError:
			rt.resolve(frame)
		case realtime.FrameChange:
			rt.mu.Lock()
			h := rt.handlers[frame.Topic]
			rt.mu.Unlock()
			if h != nil {
				h(Event{
					Table:     frame.Table,
					EventType: frame.EventType,
					New:       Row(frame.New),
					Old:       Row(frame.Old),
					CommitTS:  frame.CommitTS,
				})
			}
		}
	}
}

func (rt *realtimeConn) resolve(frame inboundFrame) {
	rt.mu.Lock()
	ack, ok := rt.acks[frame.Topic]
	delete(rt.acks, frame.Topic)
	rt.mu.Unlock()
	if !ok {
		return
	}
	if frame.Type == realtime.FrameError {
		ack <- &APIError{Code: 400, Message: frame.Message}
		return
	}
	ack <- nil
}

func (rt *realtimeConn) isClosed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.closed
}

func (rt *realtimeConn) shutdown() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	close(rt.done)
	rt.mu.Unlock()
	_ = rt.conn.Close()
}

func (rt *realtimeConn) close() error {
	rt.writeMu.Lock()
	_ = rt.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = rt.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	rt.writeMu.Unlock()
	rt.shutdown()
	return nil
}
