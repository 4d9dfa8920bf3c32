package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shouni/go-st-localizer/internal/builder"
	"github.com/shouni/go-st-localizer/internal/server"
	"github.com/shouni/go-st-localizer/pkg/host"

	"github.com/spf13/cobra"
)

var (
	listenAddr string
	allowAll   bool
)

// serveCmd は、ブラウザ側の拡張から使う HTTP サーバーを起動するサブコマンドなのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "ローカライザの HTTP サーバーを起動するのだ。",
	Args:  cobra.NoArgs,
	RunE:  serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "待ち受けアドレスなのだ（省略時は ST_LISTEN_ADDR）。")
	serveCmd.Flags().BoolVar(&allowAll, "cors-allow-all", false, "すべてのオリジンを許可するのだ（開発用）。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	logger := slog.Default()
	appCtx, err := builder.NewAppContext(cfg, logger)
	if err != nil {
		return err
	}

	state := host.NewState()
	doc := host.NewChatDocument()
	b := builder.BuildBinder(appCtx, state, doc, logger)

	srv := server.New(server.Config{
		Addr:        cfg.ListenAddr,
		SettingsKey: cfg.SettingsKey,
		AllowAll:    allowAll,
	}, appCtx.Builder, state, doc, b, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("サーバーを停止するのだ")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
