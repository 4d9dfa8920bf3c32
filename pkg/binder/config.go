package binder

import (
	"time"

	"github.com/shouni/go-st-localizer/pkg/domain"
)

// デフォルト値の定義なのだ
const (
	DefaultPanelDelay    = 500 * time.Millisecond
	DefaultRetryInterval = 1 * time.Second
	DefaultObserveWindow = 2 * time.Second
)

// DefaultSwipeDelays はスワイプ後の再描画を待つ遅延なのだ。
// ホストの再描画完了は観測できないので、数回に分けて追いかけるのだ。値は調整してよいのだ。
var DefaultSwipeDelays = []time.Duration{
	50 * time.Millisecond,
	150 * time.Millisecond,
	300 * time.Millisecond,
	600 * time.Millisecond,
}

// Config は Binder の動作設定です。
type Config struct {
	// SettingsKey はホストの extensionSettings 上のキーです。
	SettingsKey string
	// SwipeDelays はドキュメントが差し替えを通知できない場合の再ローカライズ遅延です。
	SwipeDelays []time.Duration
	// ObserveWindow はスワイプ後に差し替えを待つ最大時間です。
	ObserveWindow time.Duration
	// PanelDelay はチャット切り替えやキャラクター編集の後、パネルを書き換えるまでの待ち時間です。
	PanelDelay time.Duration
	// RetryInterval はホストの準備ができていないときの再試行間隔です。
	RetryInterval time.Duration
	// MaxAttempts は初期化の最大試行回数です。0 なら無制限なのだ。
	MaxAttempts int
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		SettingsKey:   domain.DefaultSettingsKey,
		SwipeDelays:   append([]time.Duration(nil), DefaultSwipeDelays...),
		ObserveWindow: DefaultObserveWindow,
		PanelDelay:    DefaultPanelDelay,
		RetryInterval: DefaultRetryInterval,
	}
}
