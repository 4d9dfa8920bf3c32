package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/shouni/go-st-localizer/internal/builder"
	"github.com/shouni/go-st-localizer/pkg/domain"
	"github.com/shouni/go-st-localizer/pkg/localizer"
	"github.com/shouni/go-st-localizer/pkg/rewriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// rewriteCmd は、保存済みの HTML ファイルのメディアURLを書き換えるサブコマンドなのだ。
var rewriteCmd = &cobra.Command{
	Use:   "rewrite FILE...",
	Short: "HTMLファイル内のリモートメディアURLをローカルパスに書き換えるのだ。",
	Long: `チャットのエクスポートなどの HTML ファイルを読み込み、img / video / audio の src を
ローカライズ済みのパスに書き換えて保存するのだ。--output-dir を省略すると上書きするのだ。`,
	Args: cobra.MinimumNArgs(1),
	RunE: rewriteCommand,
}

func init() {
	rewriteCmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "書き換え結果の保存先ディレクトリなのだ。")
	rewriteCmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 0, "同時に処理するファイル数なのだ。")
}

func rewriteCommand(cmd *cobra.Command, args []string) error {
	if err := requireName(); err != nil {
		return err
	}

	cfg := loadConfig()
	appCtx, err := builder.NewAppContext(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m := appCtx.Builder.Build(ctx, domain.CharacterRef{Name: opts.CharacterName, Avatar: opts.Avatar})
	if len(m) == 0 {
		pterm.Warning.Println("ローカライズ済みのメディアがないので、何も書き換えないのだ")
		return nil
	}

	if cfg.Options.OutputDir != "" {
		if err := os.MkdirAll(cfg.Options.OutputDir, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}

	var total atomic.Int64
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Options.Concurrency)
	for _, path := range args {
		eg.Go(func() error {
			n, err := rewriteFile(path, outputPath(cfg.Options.OutputDir, path), m)
			if err != nil {
				return err
			}
			total.Add(int64(n))
			slog.Info("ファイルを書き換えたのだ", "file", path, "rewritten", n)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	pterm.Success.Printf("%d 個のメディアを書き換えたのだ\n", total.Load())
	return nil
}

// rewriteFile は1つの HTML ファイルを書き換えて dst に保存し、書き換えた数を返すのだ。
func rewriteFile(src, dst string, m localizer.Map) (int, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("ファイル '%s' の読み込みに失敗しました: %w", src, err)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("ファイル '%s' のパースに失敗しました: %w", src, err)
	}

	n := rewriter.LocalizeMediaIn(doc, m)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return 0, fmt.Errorf("ファイル '%s' の書き出しに失敗しました: %w", src, err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("ファイル '%s' の保存に失敗しました: %w", dst, err)
	}
	return n, nil
}

func outputPath(outputDir, src string) string {
	if outputDir == "" {
		return src
	}
	return filepath.Join(outputDir, filepath.Base(src))
}
