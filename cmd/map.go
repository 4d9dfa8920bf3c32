package cmd

import (
	"log/slog"
	"slices"

	"github.com/shouni/go-st-localizer/internal/builder"
	"github.com/shouni/go-st-localizer/pkg/domain"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// mapCmd は、キャラクターのローカライズマップを表示するサブコマンドなのだ。
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "キャラクターのローカライズマップを表示するのだ。",
	Args:  cobra.NoArgs,
	RunE:  mapCommand,
}

func mapCommand(cmd *cobra.Command, args []string) error {
	if err := requireName(); err != nil {
		return err
	}

	cfg := loadConfig()
	appCtx, err := builder.NewAppContext(cfg, slog.Default())
	if err != nil {
		return err
	}

	char := domain.CharacterRef{Name: opts.CharacterName, Avatar: opts.Avatar}
	m := appCtx.Builder.Build(cmd.Context(), char)
	if len(m) == 0 {
		pterm.Info.Printf("%s にはローカライズ済みのメディアがないのだ\n", char.Name)
		return nil
	}

	keys := lo.Keys(m)
	slices.Sort(keys)

	rows := pterm.TableData{{"Key", "Local Path"}}
	for _, k := range keys {
		rows = append(rows, []string{k, m[k]})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
