package localizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-st-localizer/pkg/asset"
	"github.com/shouni/go-st-localizer/pkg/domain"

	"golang.org/x/sync/singleflight"
)

// Lister はキャラクターのフォルダに保存されたファイル名の一覧を返します。
type Lister interface {
	ListFiles(ctx context.Context, folder string, mediaType int) ([]string, error)
}

// Builder はキャラクターごとの Map を構築し、Cache に載せます。
type Builder struct {
	lister Lister
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewBuilder は Builder を生成します。logger が nil なら slog.Default を使うのだ。
func NewBuilder(lister Lister, c *Cache, logger *slog.Logger) *Builder {
	if c == nil {
		c = NewCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		lister: lister,
		cache:  c,
		logger: logger,
	}
}

// Cache は Builder が使っている Cache を返します。
func (b *Builder) Cache() *Cache {
	return b.cache
}

// Build はキャラクターの Map を返します。キャッシュにあれば通信しないのだ。
// 通信やデコードの失敗はログに残して空の Map として扱い、エラーは返さないのだ。
// ローカライズはおまけの機能なので、チャットの描画を止めてはいけないのだ。
func (b *Builder) Build(ctx context.Context, char domain.CharacterRef) Map {
	if m, ok := b.cache.Get(char.Avatar); ok {
		return m
	}
	if !char.HasIdentity() {
		b.logger.DebugContext(ctx, "キャラクター名がないのでローカライズをスキップするのだ", "avatar", char.Avatar)
		return Map{}
	}

	gen := b.cache.Generation()
	key := fmt.Sprintf("%d/%s/%s", gen, char.Avatar, char.Name)

	// 同じキャラクターの構築が重なったら通信は1回にまとめるのだ
	v, _, _ := b.group.Do(key, func() (interface{}, error) {
		if m, ok := b.cache.Get(char.Avatar); ok {
			return m, nil
		}
		m, listed := b.build(ctx, char)
		// 一覧の取得に失敗したときは次のイベントでやり直せるようにキャッシュしないのだ
		if !listed || !char.Cacheable() {
			return m, nil
		}
		if !b.cache.putAt(gen, char.Avatar, m) {
			b.logger.DebugContext(ctx, "構築中にキャッシュがクリアされたので保存しないのだ", "character", char.String())
		}
		return m, nil
	})

	m, ok := v.(Map)
	if !ok {
		return Map{}
	}
	return m
}

// build は一覧を取得して Map を組み立てます。
// 2つ目の戻り値は一覧の取得に成功したかどうかで、空の一覧も成功に含むのだ。
func (b *Builder) build(ctx context.Context, char domain.CharacterRef) (Map, bool) {
	result := Map{}

	names, err := b.lister.ListFiles(ctx, char.Name, asset.MediaTypeAll)
	if err != nil {
		b.logger.WarnContext(ctx, "ファイル一覧の取得に失敗したのだ。ローカライズなしで続行するのだ",
			"character", char.String(),
			"error", err,
		)
		return result, false
	}
	if len(names) == 0 {
		return result, true
	}

	for _, name := range names {
		key, ok := asset.ParseLocalizedName(name)
		if !ok {
			continue
		}
		result[key] = asset.ResolveLocalPath(char.Name, name)
	}

	b.logger.DebugContext(ctx, "ローカライズマップを構築したのだ",
		"character", char.String(),
		"files", len(names),
		"entries", len(result),
	)
	return result, true
}
