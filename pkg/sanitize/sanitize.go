// Package sanitize は、キャラクターのフォルダ名やメディアのファイル名を
// 検索キーとして安定した正規形へ変換する純粋関数群を提供します。
package sanitize

import (
	"net/url"
	"strings"
	"unicode/utf16"
)

// MaxMediaKeyLength はメディアファイル名から作るキーの最大長です。
const MaxMediaKeyLength = 50

// folderReplacer はファイルパスに使えない文字を "_" に置き換えるのだ。
// 制御文字 (0x00-0x1F) は FolderName 側でまとめて処理するのだ。
var folderReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// FolderName は、キャラクター名をファイルストレージ側と同じ規則でフォルダ名に変換します。
// 禁止文字 `< > : " / \ | ? *` と制御文字を "_" に置換し、前後の空白を取り除きます。
// ストレージ側の命名とずれるとリクエストパスも表示パスも壊れるので、規則は変えないこと。
func FolderName(name string) string {
	if name == "" {
		return ""
	}

	replaced := folderReplacer.Replace(name)
	replaced = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, replaced)

	return strings.TrimSpace(replaced)
}

// MediaFilename は、メディアのファイル名を照合用の正規キーに変換します。
// 最後の拡張子を落とし、[A-Za-z0-9_-] 以外を "_" にして、50文字で切り詰めます。
//
// 置換はブラウザ側と同じく UTF-16 のコードユニット単位なので、
// サロゲートペアになる文字は "__" の2文字になるのだ。
func MediaFilename(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		filename = filename[:idx]
	}

	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		if b.Len() >= MaxMediaKeyLength {
			break
		}
		if isKeyChar(r) {
			b.WriteRune(r)
			continue
		}
		units := utf16.RuneLen(r)
		if units < 1 {
			units = 1
		}
		for i := 0; i < units; i++ {
			b.WriteByte('_')
		}
	}

	key := b.String()
	if len(key) > MaxMediaKeyLength {
		key = key[:MaxMediaKeyLength]
	}
	return key
}

func isKeyChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// FilenameFromURL は、URL のパス末尾のセグメントをファイル名として取り出します。
// パースに失敗した場合は "/" で単純に分割し、クエリとフラグメントを落として返します。
// 使えるものが何もなければ空文字を返します。
func FilenameFromURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err == nil {
		// エンコードされた "/" を区切りと間違えないように、分割してからデコードするのだ
		seg := lastSegment(u.EscapedPath())
		if decoded, err := url.PathUnescape(seg); err == nil {
			return decoded
		}
		return seg
	}

	// パースできない URL は素朴な文字列処理で救うのだ
	name := lastSegment(raw)
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		name = name[:idx]
	}
	return name
}

func lastSegment(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
