// Package host は、ローカライザが依存するホストアプリケーション側の
// 協調オブジェクト (コンテキスト、イベント、ドキュメント) を表します。
package host

import (
	"context"
	"sync"
)

// EventName はホストのライフサイクルイベント名です。
type EventName string

const (
	CharacterMessageRendered EventName = "CHARACTER_MESSAGE_RENDERED"
	UserMessageRendered      EventName = "USER_MESSAGE_RENDERED"
	ChatChanged              EventName = "CHAT_CHANGED"
	MessageSwiped            EventName = "MESSAGE_SWIPED"
	CharacterEdited          EventName = "CHARACTER_EDITED"
)

// NoMessage はメッセージIDを持たないイベントに入る値です。
const NoMessage = -1

// KnownEvents はローカライザが購読するイベントの一覧です。
var KnownEvents = []EventName{
	CharacterMessageRendered,
	UserMessageRendered,
	ChatChanged,
	MessageSwiped,
	CharacterEdited,
}

// Event はホストから届くイベントです。
type Event struct {
	Name      EventName `json:"event"`
	MessageID int       `json:"messageId"`
}

// Handler はイベントを処理する関数です。
type Handler func(ctx context.Context, ev Event)

// EventSource は名前付きイベントの購読口です。
type EventSource interface {
	On(name EventName, h Handler)
}

// Bus はプロセス内で完結する EventSource の実装なのだ。
// Emit は登録順にハンドラを同期的に呼び出すのだ。
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventName][]Handler
}

// NewBus は空の Bus を生成します。
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventName][]Handler)}
}

// On はハンドラを登録します。
func (b *Bus) On(name EventName, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit はイベントを配送し、呼び出したハンドラの数を返します。
func (b *Bus) Emit(ctx context.Context, ev Event) int {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Name]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, ev)
	}
	return len(hs)
}

// IsKnown はローカライザが扱うイベント名かを返します。
func IsKnown(name EventName) bool {
	for _, k := range KnownEvents {
		if k == name {
			return true
		}
	}
	return false
}
