package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-st-localizer/pkg/binder"
	"github.com/shouni/go-st-localizer/pkg/domain"
)

// デフォルト値の定義なのだ
const (
	DefaultBaseURL          = "http://127.0.0.1:8000"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultListenAddr       = "127.0.0.1:8787"
	DefaultListRateInterval = 200 * time.Millisecond
	DefaultConcurrency      = 4
)

// Config はアプリケーション全体の環境設定を保持する構造体なのだ。
type Config struct {
	BaseURL          string
	SettingsKey      string
	ListenAddr       string
	HTTPTimeout      time.Duration
	ListRateInterval time.Duration
	CacheTTL         time.Duration // 0 ならチャット切り替えまで保持するのだ
	PanelDelay       time.Duration
	RetryInterval    time.Duration
	SwipeDelays      []time.Duration

	Options RunOptions
}

// RunOptions は CLI フラグから渡される実行時のパラメータなのだ。
type RunOptions struct {
	CharacterName string // --name
	Avatar        string // --avatar
	OutputDir     string // --output-dir
	Concurrency   int    // --concurrency
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	// .env はあれば読むだけなのだ。なくても環境変数で動くのだ。
	if err := godotenv.Load(); err == nil {
		slog.Debug(".env を読み込んだのだ")
	}

	return &Config{
		BaseURL:          envutil.GetEnv("ST_BASE_URL", DefaultBaseURL),
		SettingsKey:      envutil.GetEnv("ST_SETTINGS_KEY", domain.DefaultSettingsKey),
		ListenAddr:       envutil.GetEnv("ST_LISTEN_ADDR", DefaultListenAddr),
		HTTPTimeout:      durationEnv("ST_HTTP_TIMEOUT", DefaultHTTPTimeout),
		ListRateInterval: durationEnv("ST_LIST_RATE", DefaultListRateInterval),
		CacheTTL:         durationEnv("ST_CACHE_TTL", 0),
		PanelDelay:       durationEnv("ST_PANEL_DELAY", binder.DefaultPanelDelay),
		RetryInterval:    durationEnv("ST_RETRY_INTERVAL", binder.DefaultRetryInterval),
		SwipeDelays:      durationListEnv("ST_SWIPE_DELAYS", binder.DefaultSwipeDelays),
		Options: RunOptions{
			Concurrency: DefaultConcurrency,
		},
	}
}

// BinderConfig は Binder 用の設定に変換するのだ。
func (c *Config) BinderConfig() binder.Config {
	cfg := binder.DefaultConfig()
	cfg.SettingsKey = c.SettingsKey
	cfg.PanelDelay = c.PanelDelay
	cfg.RetryInterval = c.RetryInterval
	if len(c.SwipeDelays) > 0 {
		cfg.SwipeDelays = append([]time.Duration(nil), c.SwipeDelays...)
	}
	return cfg
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("時間の指定を解釈できないのでデフォルトを使うのだ", "key", key, "value", raw)
		return def
	}
	return d
}

// durationListEnv は "50ms,150ms,300ms" のようなカンマ区切りの指定を読むのだ。
func durationListEnv(key string, def []time.Duration) []time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return append([]time.Duration(nil), def...)
	}

	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil || d < 0 {
			slog.Warn("遅延の指定を解釈できないのでデフォルトを使うのだ", "key", key, "value", raw)
			return append([]time.Duration(nil), def...)
		}
		out = append(out, d)
	}
	return out
}
