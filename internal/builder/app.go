package builder

import (
	"fmt"
	"log/slog"
	"net/http/cookiejar"

	"github.com/shouni/go-st-localizer/internal/config"
	"github.com/shouni/go-st-localizer/pkg/binder"
	"github.com/shouni/go-st-localizer/pkg/host"
	"github.com/shouni/go-st-localizer/pkg/localizer"
	"github.com/shouni/go-st-localizer/pkg/stclient"

	"github.com/shouni/go-http-kit/httpkit"
	"golang.org/x/time/rate"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各コマンドやサーバーに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config     // Configは、環境変数から読み込まれた設定です。
	Options config.RunOptions  // Optionsは、コマンドラインから渡された実行時の設定です。
	Client  *stclient.Client   // Clientは、ホストサーバーとの通信に使うクライアントです。
	Builder *localizer.Builder // Builderは、キャッシュ付きのローカライズマップ構築器です。
}

// NewAppContext は設定から AppContext を組み立てます。
func NewAppContext(cfg *config.Config, logger *slog.Logger) (*AppContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := InitializeClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	cache := localizer.NewCache(cfg.CacheTTL)
	return &AppContext{
		Config:  cfg,
		Options: cfg.Options,
		Client:  client,
		Builder: localizer.NewBuilder(client, cache, logger),
	}, nil
}

// InitializeClient はホストサーバー用のクライアントを初期化します。
func InitializeClient(cfg *config.Config, logger *slog.Logger) (*stclient.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("クッキージャーの初期化に失敗しました: %w", err)
	}

	opts := []stclient.Option{
		// ホストは手元で動かすサーバーなので、localhost 宛ての通信を許可するのだ
		stclient.WithDoer(httpkit.New(cfg.HTTPTimeout, httpkit.WithSkipNetworkValidation(true))),
		stclient.WithCookieJar(jar),
		stclient.WithLogger(logger),
	}
	if cfg.ListRateInterval > 0 {
		opts = append(opts, stclient.WithRateLimiter(rate.NewLimiter(rate.Every(cfg.ListRateInterval), 1)))
	}

	client, err := stclient.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("ホストクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

// BuildBinder は、メモリ上のホスト状態とドキュメントを相手にする Binder を構築します。
func BuildBinder(appCtx *AppContext, state *host.State, doc *host.HTMLDocument, logger *slog.Logger) *binder.Binder {
	return binder.New(
		appCtx.Builder,
		func() (host.Context, host.Document, bool) {
			return state, doc, state != nil && doc != nil
		},
		binder.WithConfig(appCtx.Config.BinderConfig()),
		binder.WithLogger(logger),
	)
}
