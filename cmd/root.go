package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shouni/go-st-localizer/internal/config"

	"github.com/spf13/cobra"
)

var (
	opts    config.RunOptions
	verbose bool
)

const appName = "st-localizer"

// newRootCmd は、グローバルフラグと前処理を備えたルートコマンドにサブコマンドをぶら下げるのだ。
func newRootCmd(name string, addFlags func(*cobra.Command), preRunE func(*cobra.Command, []string) error, cmds ...*cobra.Command) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   name,
		Short: "チャット内のリモートメディアURLを、ダウンロード済みのローカルパスに書き換えるのだ。",
		Long: `キャラクターごとに保存済みのローカライズ済みメディアを一覧し、
リモートURLとの対応表を作って HTML 内の src を書き換えるツールなのだ。
ブラウザ側の拡張と連携するための HTTP サーバーとしても動くのだ。`,
		SilenceUsage:      true,
		PersistentPreRunE: preRunE,
	}
	if addFlags != nil {
		addFlags(rootCmd)
	}
	rootCmd.AddCommand(cmds...)
	return rootCmd
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出すのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.CharacterName, "name", "n", "", "キャラクター名なのだ（ファイル一覧の問い合わせに使うのだ）。")
	rootCmd.PersistentFlags().StringVarP(&opts.Avatar, "avatar", "a", "", "キャラクターのアバターIDなのだ（キャッシュキーになるのだ）。")
}

// preRunAppE は、コマンド実行前にロガーを整えるのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig は環境変数の設定にフラグの値を重ねるのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	concurrency := cfg.Options.Concurrency
	cfg.Options = opts
	if cfg.Options.Concurrency <= 0 {
		cfg.Options.Concurrency = concurrency
	}
	return cfg
}

func requireName() error {
	if opts.CharacterName == "" {
		return fmt.Errorf("キャラクター名（--name）を指定してほしいのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	rootCmd := newRootCmd(
		appName,
		addAppFlags,
		preRunAppE,
		mapCmd,
		rewriteCmd,
		sanitizeCmd,
		serveCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
