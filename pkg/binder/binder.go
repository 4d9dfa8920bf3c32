// Package binder は、ホストのライフサイクルイベントを購読し、
// マップの構築とドキュメントの書き換えを適切なタイミングで駆動します。
package binder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shouni/go-st-localizer/pkg/domain"
	"github.com/shouni/go-st-localizer/pkg/host"
	"github.com/shouni/go-st-localizer/pkg/localizer"
	"github.com/shouni/go-st-localizer/pkg/rewriter"

	"golang.org/x/net/html"
)

// State は初期化の状態です。
type State int

const (
	// StateWaitingForHost はホストの準備を待っている状態です。
	StateWaitingForHost State = iota
	// StateSubscribed はイベントを購読済みの状態です。
	StateSubscribed
	// StateGaveUp は試行回数の上限に達して諦めた状態です。
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateWaitingForHost:
		return "waiting-for-host"
	case StateSubscribed:
		return "subscribed"
	case StateGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// HostProvider はホストのコンテキストとドキュメントを返します。
// まだ用意できていなければ ok=false を返すのだ。
type HostProvider func() (hc host.Context, doc host.Document, ok bool)

// Binder はイベントとローカライズ処理をつなぐ役なのだ。
type Binder struct {
	cfg       Config
	builder   *localizer.Builder
	provider  HostProvider
	scheduler Scheduler
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
	baseCtx  context.Context
	hostCtx  host.Context
	doc      host.Document
}

// Option は Binder の生成オプションです。
type Option func(*Binder)

// WithConfig は動作設定を差し替えます。
func WithConfig(cfg Config) Option {
	return func(b *Binder) { b.cfg = cfg }
}

// WithScheduler は遅延実行の仕組みを差し替えます。
func WithScheduler(s Scheduler) Option {
	return func(b *Binder) { b.scheduler = s }
}

// WithLogger はロガーを設定します。
func WithLogger(l *slog.Logger) Option {
	return func(b *Binder) { b.logger = l }
}

// New は Binder を生成します。Start を呼ぶまでイベントは購読しません。
func New(builder *localizer.Builder, provider HostProvider, opts ...Option) *Binder {
	b := &Binder{
		cfg:       DefaultConfig(),
		builder:   builder,
		provider:  provider,
		scheduler: TimerScheduler{},
		logger:    slog.Default(),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.scheduler == nil {
		b.scheduler = TimerScheduler{}
	}
	return b
}

// State は現在の初期化状態を返します。
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start はホストへの接続を試みます。準備ができていなければ RetryInterval ごとに再試行するのだ。
// ctx は遅延実行される処理でも使われます。購読済みなら何もしません。
func (b *Binder) Start(ctx context.Context) {
	b.mu.Lock()
	if b.state != StateWaitingForHost {
		b.mu.Unlock()
		return
	}
	b.baseCtx = ctx
	b.mu.Unlock()

	b.tryInit()
}

func (b *Binder) tryInit() {
	hc, doc, ok := b.provider()
	ready := ok && hc != nil && doc != nil && hc.Events() != nil

	b.mu.Lock()
	if b.state != StateWaitingForHost {
		b.mu.Unlock()
		return
	}
	b.attempts++
	attempts := b.attempts

	if !ready {
		if b.cfg.MaxAttempts > 0 && attempts >= b.cfg.MaxAttempts {
			b.state = StateGaveUp
			b.mu.Unlock()
			b.logger.Warn("ホストの準備が整わないので購読を諦めるのだ", "attempts", attempts)
			return
		}
		b.mu.Unlock()
		b.logger.Debug("ホストの準備がまだなので後で再試行するのだ", "attempts", attempts, "retry_in", b.cfg.RetryInterval)
		b.scheduler.AfterFunc(b.cfg.RetryInterval, b.tryInit)
		return
	}

	b.hostCtx = hc
	b.doc = doc
	b.state = StateSubscribed
	b.mu.Unlock()

	events := hc.Events()
	events.On(host.CharacterMessageRendered, b.onMessageRendered)
	events.On(host.UserMessageRendered, b.onMessageRendered)
	events.On(host.MessageSwiped, b.onMessageSwiped)
	events.On(host.ChatChanged, b.onChatChanged)
	events.On(host.CharacterEdited, b.onCharacterEdited)

	b.logger.Info("ホストのイベントを購読したのだ", "attempts", attempts)
}

func (b *Binder) onMessageRendered(ctx context.Context, ev host.Event) {
	b.LocalizeMessage(ctx, ev.MessageID)
}

// onMessageSwiped は、ホストがメッセージを非同期に描き直すのを追いかけるのだ。
// 差し替えを観測できるドキュメントなら1回だけ、できなければ遅延を変えて何度か書き換えるのだ。
func (b *Binder) onMessageSwiped(ctx context.Context, ev host.Event) {
	mesID := ev.MessageID
	base := b.background()

	if obs, ok := b.document().(host.ReplaceObserver); ok {
		// 先に観測を始めておかないと、直後の差し替えを取りこぼすのだ
		obs.ObserveReplace(mesID, b.cfg.ObserveWindow, func() {
			b.scheduler.AfterFunc(0, func() { b.LocalizeMessage(base, mesID) })
		})
		b.LocalizeMessage(ctx, mesID)
		return
	}

	for _, d := range b.cfg.SwipeDelays {
		b.scheduler.AfterFunc(d, func() { b.LocalizeMessage(base, mesID) })
	}
}

func (b *Binder) onChatChanged(ctx context.Context, ev host.Event) {
	// どのキャラクターのマップが古いか選り分けず、丸ごと捨てるのだ
	b.builder.Cache().Clear()
	b.logger.DebugContext(ctx, "チャットが切り替わったのでキャッシュを破棄したのだ")

	base := b.background()
	b.scheduler.AfterFunc(b.cfg.PanelDelay, func() { b.LocalizePanels(base) })
}

func (b *Binder) onCharacterEdited(ctx context.Context, ev host.Event) {
	base := b.background()
	b.scheduler.AfterFunc(b.cfg.PanelDelay, func() { b.LocalizePanels(base) })
}

// LocalizeMessage はメッセージ mesID の本文を書き換え、書き換えた要素数を返します。
// ローカライズが無効なキャラクターでは通信もドキュメントの変更もしないのだ。
func (b *Binder) LocalizeMessage(ctx context.Context, mesID int) int {
	doc := b.document()
	if doc == nil || mesID < 0 {
		return 0
	}
	m, ok := b.resolveMap(ctx)
	if !ok {
		return 0
	}

	count := 0
	found := doc.WithMessage(mesID, func(root *html.Node) {
		count = rewriter.LocalizeMediaIn(root, m)
	})
	if !found {
		b.logger.DebugContext(ctx, "メッセージが見つからないのだ", "mesid", mesID)
		return 0
	}
	if count > 0 {
		b.logger.DebugContext(ctx, "メッセージ内のメディアをローカライズしたのだ", "mesid", mesID, "rewritten", count)
	}
	return count
}

// LocalizePanels はキャラクター情報パネルを書き換え、書き換えた要素数を返します。
func (b *Binder) LocalizePanels(ctx context.Context) int {
	doc := b.document()
	if doc == nil {
		return 0
	}
	m, ok := b.resolveMap(ctx)
	if !ok {
		return 0
	}

	count := 0
	doc.WithPanels(func(root *html.Node) {
		count += rewriter.LocalizeMediaIn(root, m)
	})
	if count > 0 {
		b.logger.DebugContext(ctx, "情報パネルのメディアをローカライズしたのだ", "rewritten", count)
	}
	return count
}

// resolveMap はアクティブなキャラクターを解決し、有効ならマップを返すのだ。
func (b *Binder) resolveMap(ctx context.Context) (localizer.Map, bool) {
	hc := b.hostContext()
	char, ok := host.CurrentCharacter(hc)
	if !ok {
		return nil, false
	}
	if !b.enabledFor(ctx, hc, char) {
		return nil, false
	}
	m := b.builder.Build(ctx, char)
	return m, len(m) > 0
}

func (b *Binder) enabledFor(ctx context.Context, hc host.Context, char domain.CharacterRef) bool {
	settings, err := domain.ParseSettings(hc.ExtensionSettings(b.cfg.SettingsKey))
	if err != nil {
		b.logger.WarnContext(ctx, "拡張設定を読めないのでローカライズを無効として扱うのだ", "error", err)
		return false
	}
	return settings.IsEnabledFor(char.Avatar)
}

func (b *Binder) hostContext() host.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hostCtx
}

func (b *Binder) document() host.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc
}

func (b *Binder) background() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseCtx
}
