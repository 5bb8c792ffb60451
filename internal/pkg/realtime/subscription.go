package realtime

import (
	"Keepsake/internal/pkg/rowfilter"
	"errors"
	"sync"
	"time"
)

var (
	ErrTopicExists          = errors.New("topic already subscribed")
	ErrTooManySubscriptions = errors.New("too many subscriptions")
	ErrUnknownTable         = errors.New("table not subscribable")
)

// Subscription websocket 会话内的一个订阅
type Subscription struct {
	Topic  string
	Table  string
	Filter rowfilter.Filter
	// VaultUntil 私密相册解锁的截止时间，零值表示未解锁
	VaultUntil time.Time
}

// Accepts 判断事件是否应推送给该订阅
func (s *Subscription) Accepts(evt *ChangeEvent, now time.Time) bool {
	if evt.Table != s.Table {
		return false
	}
	if evt.Vault && !now.Before(s.VaultUntil) {
		return false
	}
	return s.Filter.Matches(evt.Row())
}

// Registry 单个连接的订阅表，读循环增删、写循环匹配
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
	max  int
}

func NewRegistry(max int) *Registry {
	return &Registry{subs: make(map[string]*Subscription), max: max}
}

func (r *Registry) Add(sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.Topic]; ok {
		return ErrTopicExists
	}
	if r.max > 0 && len(r.subs) >= r.max {
		return ErrTooManySubscriptions
	}
	r.subs[sub.Topic] = sub
	return nil
}

// Remove 返回该 topic 是否存在
func (r *Registry) Remove(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[topic]
	delete(r.subs, topic)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Match 返回接收该事件的全部 topic
func (r *Registry) Match(evt *ChangeEvent, now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var topics []string
	for topic, sub := range r.subs {
		if sub.Accepts(evt, now) {
			topics = append(topics, topic)
		}
	}
	return topics
}
