// Package ledger 乐观写入账本：在写请求未返回时立即展示临时记录，
// 写入成功后对账替换、失败后回滚，并幂等合并实时推送的远端变更。
//
// 记录按 (CreatedAt, ID) 排序，同一持久 ID 至多出现一次，每个临时 ID
// 要么被替换一次，要么被移除。所有方法并发安全。
package ledger

import (
	"Keepsake/internal/pkg/clock"
	log "log/slog"
	"reflect"
	"sort"
	"sync"
)

// Observer 每次有效变更后收到最新快照，空操作不会通知。
// 观察者内可以再次修改账本，嵌套变更的快照在当前回调返回后送达。
type Observer[T any] func(items []Entity[T])

type observer[T any] struct {
	id uint64
	fn Observer[T]
}

type Option[T any] func(*Ledger[T])

func WithClock[T any](c clock.Clock) Option[T] {
	return func(l *Ledger[T]) { l.clock = c }
}

func WithValidator[T any](v Validator[T]) Option[T] {
	return func(l *Ledger[T]) { l.validate = v }
}

// WithTempIDs 替换临时 ID 生成器，生成的 ID 必须以 TempPrefix 开头
func WithTempIDs[T any](gen func() string) Option[T] {
	return func(l *Ledger[T]) { l.newID = gen }
}

type Ledger[T any] struct {
	mu        sync.Mutex
	items     []Entity[T]
	clock     clock.Clock
	validate  Validator[T]
	newID     func() string
	observers []observer[T]
	nextObs   uint64
	version   uint64
	absorbed  uint64

	notifyMu   sync.Mutex
	delivering bool
	delivered  uint64
	latest     uint64
	latestSnap []Entity[T]
	latestObs  []observer[T]
}

func New[T any](opts ...Option[T]) *Ledger[T] {
	l := &Ledger[T]{
		clock: clock.Real(),
		newID: NewTempID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnChange 注册观察者，返回的函数用于注销，重复调用安全
func (l *Ledger[T]) OnChange(fn Observer[T]) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextObs++
	id := l.nextObs
	l.observers = append(l.observers, observer[T]{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, o := range l.observers {
			if o.id == id {
				l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
				return
			}
		}
	}
}

// InsertOptimistic 校验后追加一条待确认记录并立即返回临时 ID
func (l *Ledger[T]) InsertOptimistic(ownerID string, payload T) (string, error) {
	if l.validate != nil {
		if err := l.validate(payload); err != nil {
			return "", asValidationError(err)
		}
	}

	l.mu.Lock()
	tempID := l.newID()
	l.insertLocked(Entity[T]{
		ID:        tempID,
		OwnerID:   ownerID,
		Payload:   payload,
		CreatedAt: l.clock.Now(),
		LocalID:   tempID,
		Pending:   true,
	})
	l.unlockAndNotify()
	return tempID, nil
}

// Reconcile 用持久记录替换临时记录；临时记录已不存在时为空操作
func (l *Ledger[T]) Reconcile(tempID string, durable Entity[T]) bool {
	l.mu.Lock()
	idx := l.indexPendingLocked(tempID)
	if idx < 0 {
		l.mu.Unlock()
		log.Debug("reconcile skipped, temp entry gone", "temp_id", tempID, "id", durable.ID)
		return false
	}
	l.removeLocked(idx)

	durable.Pending = false
	l.upsertLocked(durable)
	l.unlockAndNotify()
	return true
}

// Rollback 移除临时记录，不存在时为空操作
func (l *Ledger[T]) Rollback(tempID string) bool {
	l.mu.Lock()
	idx := l.indexPendingLocked(tempID)
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	l.removeLocked(idx)
	l.unlockAndNotify()
	return true
}

// MergeRemote 按持久 ID 幂等合并远端变更，返回账本是否发生变化
func (l *Ledger[T]) MergeRemote(evt ChangeEvent[T]) bool {
	durable := evt.Entity
	if durable.ID == "" || IsTemp(durable.ID) {
		l.absorb("event without durable id", evt)
		return false
	}
	durable.Pending = false

	l.mu.Lock()
	changed := false

	// 自己写入的回显先于写请求返回时，直接替换临时记录
	if durable.LocalID != "" {
		if idx := l.indexPendingLocked(durable.LocalID); idx >= 0 {
			l.removeLocked(idx)
			changed = true
		}
	}

	switch evt.Kind {
	case Inserted, Updated:
		if l.upsertLocked(durable) {
			changed = true
		}
	case Deleted:
		if idx := l.indexLocked(durable.ID); idx >= 0 {
			l.removeLocked(idx)
			changed = true
		}
	default:
		l.mu.Unlock()
		l.absorb("unknown event kind", evt)
		return false
	}

	if !changed {
		l.absorbed++
		l.mu.Unlock()
		log.Debug("duplicate change event absorbed", "kind", evt.Kind.String(), "id", durable.ID)
		return false
	}
	l.unlockAndNotify()
	return true
}

// Reset 以服务端首屏数据替换持久记录，保留仍在途的临时记录
func (l *Ledger[T]) Reset(entities []Entity[T]) {
	l.mu.Lock()
	kept := make([]Entity[T], 0, len(entities)+len(l.items))
	for _, item := range l.items {
		if item.Pending {
			kept = append(kept, item)
		}
	}
	l.items = kept
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		e.Pending = false
		if e.LocalID != "" {
			if idx := l.indexPendingLocked(e.LocalID); idx >= 0 {
				l.removeLocked(idx)
			}
		}
		l.upsertLocked(e)
	}
	l.unlockAndNotify()
}

// Snapshot 当前记录的副本
func (l *Ledger[T]) Snapshot() []Entity[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Get 按 ID 查找，临时 ID 与持久 ID 均可
func (l *Ledger[T]) Get(id string) (Entity[T], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := l.indexLocked(id); idx >= 0 {
		return l.items[idx], true
	}
	return Entity[T]{}, false
}

// Absorbed 被幂等吸收的重复或异常事件数
func (l *Ledger[T]) Absorbed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.absorbed
}

func (l *Ledger[T]) absorb(reason string, evt ChangeEvent[T]) {
	l.mu.Lock()
	l.absorbed++
	l.mu.Unlock()
	log.Debug("change event absorbed", "reason", reason, "kind", evt.Kind.String(), "id", evt.Entity.ID)
}

func (l *Ledger[T]) indexLocked(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger[T]) indexPendingLocked(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range l.items {
		if l.items[i].Pending && l.items[i].ID == tempID {
			return i
		}
	}
	return -1
}

func (l *Ledger[T]) insertLocked(e Entity[T]) {
	pos := sort.Search(len(l.items), func(i int) bool { return less(&e, &l.items[i]) })
	l.items = append(l.items, Entity[T]{})
	copy(l.items[pos+1:], l.items[pos:])
	l.items[pos] = e
}

func (l *Ledger[T]) removeLocked(idx int) {
	l.items = append(l.items[:idx], l.items[idx+1:]...)
}

// upsertLocked 替换或插入，内容完全相同时返回 false
func (l *Ledger[T]) upsertLocked(e Entity[T]) bool {
	if idx := l.indexLocked(e.ID); idx >= 0 {
		if reflect.DeepEqual(l.items[idx], e) {
			return false
		}
		l.removeLocked(idx)
	}
	l.insertLocked(e)
	return true
}

func (l *Ledger[T]) snapshotLocked() []Entity[T] {
	out := make([]Entity[T], len(l.items))
	copy(out, l.items)
	return out
}

// unlockAndNotify 释放锁后通知观察者。同一时刻只有一个协程在派发，
// 派发期间产生的新版本由它在当前一轮结束后补发，旧快照不会覆盖新快照。
func (l *Ledger[T]) unlockAndNotify() {
	l.version++
	version := l.version
	snap := l.snapshotLocked()
	observers := append([]observer[T](nil), l.observers...)
	l.mu.Unlock()

	if len(observers) == 0 {
		return
	}
	l.notifyMu.Lock()
	if version > l.latest {
		l.latest, l.latestSnap, l.latestObs = version, snap, observers
	}
	if l.delivering {
		l.notifyMu.Unlock()
		return
	}
	l.delivering = true
	for l.delivered < l.latest {
		l.delivered = l.latest
		snap, observers := l.latestSnap, l.latestObs
		l.latestSnap, l.latestObs = nil, nil
		l.notifyMu.Unlock()
		for _, o := range observers {
			o.fn(snap)
		}
		l.notifyMu.Lock()
	}
	l.delivering = false
	l.notifyMu.Unlock()
}
