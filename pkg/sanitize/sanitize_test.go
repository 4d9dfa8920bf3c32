package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FolderName_ReplacesForbiddenCharacters(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "空文字は空文字のまま", input: "", expected: ""},
		{name: "禁止文字がなければそのまま", input: "Seraphina", expected: "Seraphina"},
		{name: "パス区切りを置換する", input: "a/b\\c", expected: "a_b_c"},
		{name: "すべての禁止文字", input: `<>:"/\|?*`, expected: "_________"},
		{name: "制御文字を置換する", input: "tab\there\x01", expected: "tab_here_"},
		{name: "前後の空白を落とす", input: "  Alice  ", expected: "Alice"},
		{name: "日本語は残す", input: "ずんだもん: 改", expected: "ずんだもん_ 改"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FolderName(tt.input))
		})
	}
}

func Test_FolderName_IsIdempotent(t *testing.T) {
	inputs := []string{"", "  x  ", "a:b", "\x00\x1f", " <a> ", "普通の名前", "tail\n"}
	for _, in := range inputs {
		once := FolderName(in)
		assert.Equal(t, once, FolderName(once), "input=%q", in)
	}
}

func Test_MediaFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "拡張子を落とす", input: "cover_art.png", expected: "cover_art"},
		{name: "最後の拡張子だけ落とす", input: "archive.tar.gz", expected: "archive_tar"},
		{name: "拡張子がなければそのまま", input: "plain", expected: "plain"},
		{name: "記号と空白を置換", input: "Cover Art!!.jpeg", expected: "Cover_Art__"},
		{name: "ハイフンは残す", input: "a-b_c.webp", expected: "a-b_c"},
		{name: "BMP外の文字は2文字分", input: "x😀.png", expected: "x__"},
		{name: "マルチバイトは1文字ずつ", input: "画像.png", expected: "__"},
		{name: "ドットだけ", input: ".png", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MediaFilename(tt.input))
		})
	}
}

func Test_MediaFilename_Properties(t *testing.T) {
	inputs := []string{
		"",
		strings.Repeat("a", 120) + ".png",
		strings.Repeat("😀", 40),
		"Ünïcødé name (final) [v2].mp4",
		"../../etc/passwd",
	}

	for _, in := range inputs {
		got := MediaFilename(in)
		assert.LessOrEqual(t, len(got), MaxMediaKeyLength, "input=%q", in)
		for _, r := range got {
			assert.True(t, isKeyChar(r), "unexpected rune %q in %q", r, got)
		}
		assert.Equal(t, got, MediaFilename(in), "deterministic for %q", in)
	}
}

func Test_FilenameFromURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "空文字", input: "", expected: ""},
		{name: "絶対URL", input: "https://cdn.example.com/img/cover.png", expected: "cover.png"},
		{name: "クエリは無視", input: "https://cdn.example.com/img/cover.png?w=200#top", expected: "cover.png"},
		{name: "パーセントエンコードを戻す", input: "https://cdn.example.com/cover%20art.png", expected: "cover art.png"},
		{name: "エンコードされたスラッシュは区切りにしない", input: "https://cdn.example.com/img/album%2Fcover.png", expected: "album/cover.png"},
		{name: "相対パス", input: "img/cover.png", expected: "cover.png"},
		{name: "末尾スラッシュ", input: "https://cdn.example.com/img/", expected: ""},
		{name: "不正なエスケープはフォールバック", input: "https://cdn.example.com/bad%zzname.png?x=1", expected: "bad%zzname.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FilenameFromURL(tt.input))
		})
	}
}
