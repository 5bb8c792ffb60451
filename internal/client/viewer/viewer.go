// Package viewer 幻灯片与大图浏览的当前索引控制。
//
// 用户滑动只静默记录索引；计时器推进才走 OnJump 的“跳转”路径，每次推进恰好
// 通知一次。用户操作会暂停自动播放，静默期过后从用户所在位置继续。
package viewer

import (
	"Keepsake/internal/pkg/clock"
	"sync"
	"time"
)

const (
	MinInterval        = time.Second
	MaxInterval        = 30 * time.Second
	DefaultInterval    = 3 * time.Second
	DefaultQuietPeriod = 600 * time.Millisecond
)

type State int

const (
	Idle State = iota
	AutoAdvancing
	PausedForUserInput
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AutoAdvancing:
		return "auto_advancing"
	case PausedForUserInput:
		return "paused_for_user_input"
	}
	return "unknown"
}

// IndexState 对外可见的浏览状态
type IndexState struct {
	Index int
	State State
}

// AutoAdvancing 是否处于自动播放
func (s IndexState) AutoAdvancing() bool { return s.State == AutoAdvancing }

// ClampInterval 将播放间隔限制在 [MinInterval, MaxInterval]
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(v *Controller) { v.clock = c }
}

// WithQuietPeriod 用户操作后恢复自动播放前的静默期
func WithQuietPeriod(d time.Duration) Option {
	return func(v *Controller) {
		if d > 0 {
			v.quiet = d
		}
	}
}

type Controller struct {
	mu       sync.Mutex
	clock    clock.Clock
	state    State
	index    int
	count    int
	interval time.Duration
	quiet    time.Duration
	timer    *clock.Timer
	gen      uint64
	closed   bool
	onJump   []func(index int)
	onClose  []func()
}

// New 创建控制器，初始为 Idle 且索引为 0
func New(itemCount int, opts ...Option) *Controller {
	v := &Controller{
		clock:    clock.Real(),
		interval: DefaultInterval,
		quiet:    DefaultQuietPeriod,
	}
	if itemCount > 0 {
		v.count = itemCount
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// OnJump 注册计时推进的回调
func (v *Controller) OnJump(fn func(index int)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onJump = append(v.onJump, fn)
}

// Start 以给定间隔开始自动播放，没有条目时保持 Idle 并返回 false
func (v *Controller) Start(interval time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.count == 0 {
		return false
	}
	v.interval = ClampInterval(interval)
	v.state = AutoAdvancing
	v.scheduleLocked(v.interval, v.tick)
	return true
}

// Stop 停止计时并回到 Idle，索引保留
func (v *Controller) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

// OnClose 注册关闭回调，已关闭时立即执行
func (v *Controller) OnClose(fn func()) {
	v.mu.Lock()
	if !v.closed {
		v.onClose = append(v.onClose, fn)
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()
	fn()
}

// Close 浏览器关闭，之后的 Start 均无效
func (v *Controller) Close() {
	v.mu.Lock()
	v.stopLocked()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	hooks := v.onClose
	v.onClose = nil
	v.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// OnUserNavigate 记录用户滑到的位置，不触发 OnJump；越界的索引被忽略
func (v *Controller) OnUserNavigate(index int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= v.count {
		return false
	}
	v.index = index
	if v.state == AutoAdvancing || v.state == PausedForUserInput {
		v.state = PausedForUserInput
		v.scheduleLocked(v.quiet, v.resume)
	}
	return true
}

// SetInterval 调整间隔，自动播放中会以新间隔重新计时
func (v *Controller) SetInterval(d time.Duration) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interval = ClampInterval(d)
	if v.state == AutoAdvancing {
		v.scheduleLocked(v.interval, v.tick)
	}
	return v.interval
}

// SetItemCount 条目数变化，索引越界时收拢到最后一项，条目清空时停止
func (v *Controller) SetItemCount(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n < 0 {
		n = 0
	}
	v.count = n
	if n == 0 {
		v.stopLocked()
		v.index = 0
		return
	}
	if v.index >= n {
		v.index = n - 1
	}
}

func (v *Controller) Index() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index
}

func (v *Controller) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Controller) Interval() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.interval
}

func (v *Controller) Snapshot() IndexState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return IndexState{Index: v.index, State: v.state}
}

func (v *Controller) tick(gen uint64) {
	v.mu.Lock()
	if gen != v.gen || v.state != AutoAdvancing {
		v.mu.Unlock()
		return
	}
	if v.count == 0 {
		v.stopLocked()
		v.index = 0
		v.mu.Unlock()
		return
	}
	v.index = (v.index + 1) % v.count
	index := v.index
	observers := make([]func(int), len(v.onJump))
	copy(observers, v.onJump)
	v.scheduleLocked(v.interval, v.tick)
	v.mu.Unlock()

	for _, fn := range observers {
		fn(index)
	}
}

func (v *Controller) resume(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen || v.state != PausedForUserInput {
		return
	}
	v.state = AutoAdvancing
	v.scheduleLocked(v.interval, v.tick)
}

// scheduleLocked 取消已有计时并安排新的回调，过期回调通过 gen 识别
func (v *Controller) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	v.timer.Stop()
	v.gen++
	gen := v.gen
	v.timer = v.clock.AfterFunc(d, func() { fn(gen) })
}

func (v *Controller) stopLocked() {
	v.timer.Stop()
	v.timer = nil
	v.gen++
	v.state = Idle
}
