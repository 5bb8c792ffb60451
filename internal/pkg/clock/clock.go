// Package clock 可注入的时间源。生产代码使用 Real()，测试使用 Fake() 手动推进时间，
// 幻灯片计时器与静默期等逻辑因此可以确定性地测试。
package clock

import "time"

// Clock 时间操作的最小集合
type Clock interface {
	Now() time.Time
	// AfterFunc d 之后调用 f，返回可取消的 Timer
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer AfterFunc 返回的句柄
type Timer struct {
	stopFunc func() bool
}

// Stop 阻止尚未触发的回调，已触发或已停止时返回 false
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real 基于标准库 time 的时钟
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stopFunc: timer.Stop}
}
