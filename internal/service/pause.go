package service

import "sync/atomic"

// PauseSwitch 全局熔断开关。置位后拒绝一切新的创建/签名请求，
// 只读查询和管理操作不受影响。
type PauseSwitch struct {
	flag atomic.Bool
}

func (p *PauseSwitch) Pause()       { p.flag.Store(true) }
func (p *PauseSwitch) Resume()      { p.flag.Store(false) }
func (p *PauseSwitch) Paused() bool { return p.flag.Load() }
