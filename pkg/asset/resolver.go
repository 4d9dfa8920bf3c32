package asset

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/shouni/go-st-localizer/pkg/sanitize"
)

const (
	// LocalizedMediaPrefix はコンパニオンツールが保存したローカルメディアのファイル名接頭辞です。
	LocalizedMediaPrefix = "localized_media"
	// UserImagesRoot はホストがユーザー画像を配信するルートパスです。
	UserImagesRoot = "/user/images"
	// MediaTypeAll はファイル一覧 API に渡す「全メディア種別」の値です。
	MediaTypeAll = 7
)

// LocalizedMediaRegex は localized_media_<数字>_<キー>.<拡張子> に一致し、キー部分をキャプチャします。
var LocalizedMediaRegex = createLocalizedRegex(LocalizedMediaPrefix)

// ParseLocalizedName は、ファイル名がローカライズ済みメディアの命名規則に合うかを判定し、
// 保存時にすでにサニタイズ済みのキー部分を返します。
// 例: "localized_media_17_cover_art.png" -> "cover_art", true
func ParseLocalizedName(fileName string) (string, bool) {
	m := LocalizedMediaRegex.FindStringSubmatch(fileName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResolveLocalPath は、キャラクター名と保存済みファイル名から、ホスト上のローカルパスを生成します。
// フォルダ名はストレージ側と同じ規則でサニタイズし、ファイル名は URL エスケープするのだ。
// 例: "Alice", "localized_media_1_a b.png" -> "/user/images/Alice/localized_media_1_a%20b.png"
func ResolveLocalPath(characterName, fileName string) string {
	return UserImagesRoot + "/" + sanitize.FolderName(characterName) + "/" + url.PathEscape(fileName)
}

// createLocalizedRegex は、接頭辞に基づきローカライズ済みメディア用の正規表現を生成します。
// 例: "localized_media" -> ^localized_media_\d+_(.+)\.[^.]+$
func createLocalizedRegex(prefix string) *regexp.Regexp {
	// prefix は QuoteMeta でエスケープして、特殊文字が含まれていてもリテラルとして扱うのだ。
	pattern := fmt.Sprintf(`^%s_\d+_(.+)\.[^.]+$`, regexp.QuoteMeta(prefix))
	return regexp.MustCompile(pattern)
}
