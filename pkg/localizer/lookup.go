// Package localizer は、リモートのメディアURLをローカルに保存済みのファイルパスへ
// 対応付けるマップの構築、キャッシュ、照合を担当します。
package localizer

import (
	"github.com/shouni/go-st-localizer/pkg/sanitize"
)

// Map はサニタイズ済みのファイル名キーからローカルパスへの対応表です。
// 一度構築したら変更しないこと。作り直すときは新しい Map を作るのだ。
type Map map[string]string

// Lookup はリモートURLからファイル名を取り出してサニタイズし、対応するローカルパスを探します。
// リモート側は照合時にサニタイズし、ローカル側は保存時にサニタイズ済みのキーを使うので、
// 拡張子やエンコードが違っても同じキーに落ちれば一致するのだ。
func Lookup(m Map, remoteURL string) (string, bool) {
	if len(m) == 0 || remoteURL == "" {
		return "", false
	}
	name := sanitize.FilenameFromURL(remoteURL)
	if name == "" {
		return "", false
	}
	key := sanitize.MediaFilename(name)
	if key == "" {
		return "", false
	}
	local, ok := m[key]
	return local, ok
}
