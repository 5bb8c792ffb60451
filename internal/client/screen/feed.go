package screen

import (
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/pkg/clock"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Decoder 将服务端行解码为账本记录
type Decoder[T any] func(row gateway.Row) (ledger.Entity[T], error)

// WriteFunc 执行持久写入，tempID 应作为 client_id 回传给服务端
type WriteFunc[T any] func(ctx context.Context, tempID string, payload T) (gateway.Row, error)

type FeedConfig[T any] struct {
	Table     string
	Filter    rowfilter.Filter
	Query     gateway.Query
	Decode    Decoder[T]
	Validator ledger.Validator[T]
	Clock     clock.Clock
}

// Feed 一个表的实时视图
type Feed[T any] struct {
	gw     Gateway
	cfg    FeedConfig[T]
	ledger *ledger.Ledger[T]

	malformed atomic.Uint64

	openMu sync.Mutex

	mu      sync.Mutex
	sub     Subscription
	opened  bool
	closed  bool
	loading bool
	backlog []gateway.Event
}

func NewFeed[T any](gw Gateway, cfg FeedConfig[T]) *Feed[T] {
	opts := []ledger.Option[T]{}
	if cfg.Clock != nil {
		opts = append(opts, ledger.WithClock[T](cfg.Clock))
	}
	if cfg.Validator != nil {
		opts = append(opts, ledger.WithValidator(cfg.Validator))
	}
	return &Feed[T]{gw: gw, cfg: cfg, ledger: ledger.New[T](opts...)}
}

func (f *Feed[T]) OnChange(fn ledger.Observer[T]) (cancel func()) { return f.ledger.OnChange(fn) }

func (f *Feed[T]) Items() []ledger.Entity[T] { return f.ledger.Snapshot() }

func (f *Feed[T]) Len() int { return f.ledger.Len() }

func (f *Feed[T]) Get(id string) (ledger.Entity[T], bool) { return f.ledger.Get(id) }

// Malformed 解码失败被丢弃的行数
func (f *Feed[T]) Malformed() uint64 { return f.malformed.Load() }

// Absorbed 被幂等吸收的重复事件数
func (f *Feed[T]) Absorbed() uint64 { return f.ledger.Absorbed() }

// Open 先订阅再加载首屏。加载期间到达的事件先缓存，首屏写入账本后按到达顺序重放，
// 查询之后发生的变更不会被首屏覆盖。并发调用按顺序执行，只订阅一次。
func (f *Feed[T]) Open(ctx context.Context) error {
	f.openMu.Lock()
	defer f.openMu.Unlock()

	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return ErrNotOpen
	case f.opened:
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	sub, err := f.gw.Subscribe(ctx, f.cfg.Table, f.cfg.Filter, f.onEvent)
	if err != nil {
		f.abortLoad()
		return classify("subscribe "+f.cfg.Table, err)
	}
	rows, err := f.gw.Select(ctx, f.cfg.Table, f.cfg.Filter, f.cfg.Query)
	if err != nil {
		f.abortLoad()
		_ = sub.Unsubscribe()
		return classify("load "+f.cfg.Table, err)
	}

	entities := make([]ledger.Entity[T], 0, len(rows))
	for _, row := range rows {
		e, err := f.cfg.Decode(row)
		if err != nil {
			f.dropped(err)
			continue
		}
		entities = append(entities, e)
	}

	f.mu.Lock()
	if f.closed {
		f.loading = false
		f.backlog = nil
		f.mu.Unlock()
		_ = sub.Unsubscribe()
		return ErrNotOpen
	}
	f.sub = sub
	f.opened = true
	f.mu.Unlock()

	f.ledger.Reset(entities)
	f.replay()
	return nil
}

func (f *Feed[T]) abortLoad() {
	f.mu.Lock()
	f.loading = false
	f.backlog = nil
	f.mu.Unlock()
}

// replay 重放加载期间缓存的事件，直到缓存为空才恢复直接合并
func (f *Feed[T]) replay() {
	for {
		f.mu.Lock()
		batch := f.backlog
		f.backlog = nil
		if len(batch) == 0 {
			f.loading = false
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()
		for _, evt := range batch {
			f.apply(evt)
		}
	}
}

func (f *Feed[T]) onEvent(evt gateway.Event) {
	f.mu.Lock()
	if f.loading {
		f.backlog = append(f.backlog, evt)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.apply(evt)
}

func (f *Feed[T]) apply(evt gateway.Event) {
	var kind ledger.Kind
	row := evt.New
	switch evt.EventType {
	case realtime.Insert:
		kind = ledger.Inserted
	case realtime.Update:
		kind = ledger.Updated
	case realtime.Delete:
		kind = ledger.Deleted
		if len(evt.Old) > 0 {
			row = evt.Old
		}
	default:
		f.dropped(errors.Errorf("unknown event type %q", evt.EventType))
		return
	}
	e, err := f.cfg.Decode(row)
	if err != nil {
		f.dropped(err)
		return
	}
	f.ledger.MergeRemote(ledger.ChangeEvent[T]{Kind: kind, Entity: e})
}

func (f *Feed[T]) dropped(err error) {
	f.malformed.Add(1)
	log.Warn("drop malformed row", "table", f.cfg.Table, "err", err)
}

func (f *Feed[T]) currentUser() (string, error) {
	user, ok := f.gw.CurrentUser()
	if !ok {
		return "", ErrAuth
	}
	return strconv.FormatUint(user.ID, 10), nil
}

// Submit 乐观插入后执行持久写入，成功对账、失败回滚
func (f *Feed[T]) Submit(ctx context.Context, payload T, write WriteFunc[T]) (ledger.Entity[T], error) {
	owner, err := f.currentUser()
	if err != nil {
		return ledger.Entity[T]{}, err
	}
	tempID, err := f.ledger.InsertOptimistic(owner, payload)
	if err != nil {
		return ledger.Entity[T]{}, err
	}

	row, err := write(ctx, tempID, payload)
	if err != nil {
		f.ledger.Rollback(tempID)
		return ledger.Entity[T]{}, classify("write "+f.cfg.Table, err)
	}
	durable, err := f.cfg.Decode(row)
	if err != nil {
		// 写入已成功，等待实时事件补齐
		f.ledger.Rollback(tempID)
		f.dropped(err)
		return ledger.Entity[T]{}, &NetworkError{Op: "decode " + f.cfg.Table, Err: err}
	}
	f.ledger.Reconcile(tempID, durable)
	return durable, nil
}

// Remove 持久删除成功后移除本地记录，实时事件重复到达时被吸收
func (f *Feed[T]) Remove(ctx context.Context, id string, del func(ctx context.Context, id string) error) error {
	if _, err := f.currentUser(); err != nil {
		return err
	}
	e, ok := f.ledger.Get(id)
	if !ok {
		return nil
	}
	if ledger.IsTemp(id) {
		return errors.Errorf("screen: %s is still being written", id)
	}
	if err := del(ctx, id); err != nil {
		return classify("delete "+f.cfg.Table, err)
	}
	f.ledger.MergeRemote(ledger.ChangeEvent[T]{Kind: ledger.Deleted, Entity: e})
	return nil
}

// Close 取消订阅，多次调用安全
func (f *Feed[T]) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
