package cmd

import (
	"fmt"

	"github.com/shouni/go-st-localizer/pkg/sanitize"

	"github.com/spf13/cobra"
)

// sanitizeCmd は、サニタイズ結果を確認するためのサブコマンドなのだ。
var sanitizeCmd = &cobra.Command{
	Use:       "sanitize {folder|media|url} VALUE",
	Short:     "フォルダ名・メディアファイル名・URLの正規化結果を表示するのだ。",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"folder", "media", "url"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var out string
		switch args[0] {
		case "folder":
			out = sanitize.FolderName(args[1])
		case "media":
			out = sanitize.MediaFilename(args[1])
		case "url":
			name := sanitize.FilenameFromURL(args[1])
			out = fmt.Sprintf("%s -> %s", name, sanitize.MediaFilename(name))
		default:
			return fmt.Errorf("種類は folder / media / url のどれかなのだ: %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
