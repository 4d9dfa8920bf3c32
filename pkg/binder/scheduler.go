package binder

import "time"

// Scheduler は遅延実行の抽象です。UI スレッドのタイマーに縛られないようにするためのものなのだ。
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler は time.AfterFunc で動く Scheduler です。
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
