package localizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-st-localizer/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeLister struct {
	ListFunc func(ctx context.Context, folder string, mediaType int) ([]string, error)
	calls    atomic.Int32
}

func (f *FakeLister) ListFiles(ctx context.Context, folder string, mediaType int) ([]string, error) {
	f.calls.Add(1)
	if f.ListFunc != nil {
		return f.ListFunc(ctx, folder, mediaType)
	}
	return nil, nil
}

func staticLister(names ...string) *FakeLister {
	return &FakeLister{
		ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
			return names, nil
		},
	}
}

var alice = domain.CharacterRef{Name: "Alice", Avatar: "alice.png"}

func TestBuilder_Build(t *testing.T) {
	t.Run("命名規則に合うファイルだけがマップに入るのだ", func(t *testing.T) {
		lister := staticLister(
			"localized_media_17_cover_art.png",
			"localized_media_2_theme.mp3",
			"random_upload.png",
			"localized_media_x_bad.png",
		)
		b := NewBuilder(lister, NewCache(0), nil)

		m := b.Build(context.Background(), alice)
		assert.Equal(t, Map{
			"cover_art": "/user/images/Alice/localized_media_17_cover_art.png",
			"theme":     "/user/images/Alice/localized_media_2_theme.mp3",
		}, m)
	})

	t.Run("フォルダ名はサニタイズされるのだ", func(t *testing.T) {
		lister := &FakeLister{
			ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
				assert.Equal(t, "Dr. Who?", folder)
				assert.Equal(t, 7, mediaType)
				return []string{"localized_media_1_tardis.png"}, nil
			},
		}
		b := NewBuilder(lister, nil, nil)

		m := b.Build(context.Background(), domain.CharacterRef{Name: "Dr. Who?", Avatar: "who.png"})
		assert.Equal(t, "/user/images/Dr. Who_/localized_media_1_tardis.png", m["tardis"])
	})

	t.Run("2回目はキャッシュから返して通信しないのだ", func(t *testing.T) {
		lister := staticLister("localized_media_17_cover_art.png")
		b := NewBuilder(lister, NewCache(0), nil)

		first := b.Build(context.Background(), alice)
		second := b.Build(context.Background(), alice)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), lister.calls.Load())
	})

	t.Run("Avatarがなければキャッシュしないのだ", func(t *testing.T) {
		lister := staticLister("localized_media_17_cover_art.png")
		c := NewCache(0)
		b := NewBuilder(lister, c, nil)

		noAvatar := domain.CharacterRef{Name: "Alice"}
		b.Build(context.Background(), noAvatar)
		b.Build(context.Background(), noAvatar)
		assert.Equal(t, int32(2), lister.calls.Load())
		assert.Equal(t, 0, c.Len())
	})

	t.Run("名前がなければ通信しないのだ", func(t *testing.T) {
		lister := staticLister("localized_media_17_cover_art.png")
		b := NewBuilder(lister, nil, nil)

		m := b.Build(context.Background(), domain.CharacterRef{Avatar: "x.png"})
		assert.Empty(t, m)
		assert.Equal(t, int32(0), lister.calls.Load())
	})

	t.Run("通信エラーは空のマップになるのだ", func(t *testing.T) {
		lister := &FakeLister{
			ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
				return nil, errors.New("connection refused")
			},
		}
		b := NewBuilder(lister, nil, nil)

		var m Map
		require.NotPanics(t, func() { m = b.Build(context.Background(), alice) })
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("空の一覧は空のマップになるのだ", func(t *testing.T) {
		b := NewBuilder(staticLister(), nil, nil)
		assert.Empty(t, b.Build(context.Background(), alice))
	})
}

func TestBuilder_FailedListingIsRetried(t *testing.T) {
	t.Run("通信エラーのあとは復旧すればマップを作り直すのだ", func(t *testing.T) {
		var failing atomic.Bool
		failing.Store(true)
		lister := &FakeLister{
			ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
				if failing.Load() {
					return nil, errors.New("connection refused")
				}
				return []string{"localized_media_17_cover_art.png"}, nil
			},
		}
		c := NewCache(0)
		b := NewBuilder(lister, c, nil)

		assert.Empty(t, b.Build(context.Background(), alice))
		_, cached := c.Get(alice.Avatar)
		assert.False(t, cached)

		failing.Store(false)
		m := b.Build(context.Background(), alice)
		assert.Equal(t, int32(2), lister.calls.Load())
		assert.Equal(t, "/user/images/Alice/localized_media_17_cover_art.png", m["cover_art"])
	})

	t.Run("キャンセルされたコンテキストの結果は残さないのだ", func(t *testing.T) {
		lister := &FakeLister{
			ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return []string{"localized_media_17_cover_art.png"}, nil
			},
		}
		b := NewBuilder(lister, NewCache(0), nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Empty(t, b.Build(ctx, alice))

		m := b.Build(context.Background(), alice)
		assert.Equal(t, int32(2), lister.calls.Load())
		assert.Contains(t, m, "cover_art")
	})

	t.Run("空の一覧は成功なのでキャッシュするのだ", func(t *testing.T) {
		lister := staticLister()
		c := NewCache(0)
		b := NewBuilder(lister, c, nil)

		b.Build(context.Background(), alice)
		b.Build(context.Background(), alice)
		assert.Equal(t, int32(1), lister.calls.Load())
		_, cached := c.Get(alice.Avatar)
		assert.True(t, cached)
	})
}

func TestBuilder_ClearForcesRebuild(t *testing.T) {
	lister := staticLister("localized_media_17_cover_art.png")
	c := NewCache(0)
	b := NewBuilder(lister, c, nil)

	b.Build(context.Background(), alice)
	require.Equal(t, int32(1), lister.calls.Load())

	c.Clear()
	_, ok := c.Get(alice.Avatar)
	assert.False(t, ok)

	b.Build(context.Background(), alice)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestBuilder_ClearDuringBuildDropsResult(t *testing.T) {
	c := NewCache(0)
	lister := &FakeLister{
		ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
			// 一覧取得の最中にチャットが切り替わったのだ
			c.Clear()
			return []string{"localized_media_1_a.png"}, nil
		},
	}
	b := NewBuilder(lister, c, nil)

	m := b.Build(context.Background(), alice)
	assert.Equal(t, "/user/images/Alice/localized_media_1_a.png", m["a"])

	_, ok := c.Get(alice.Avatar)
	assert.False(t, ok, "Clear をまたいだ結果はキャッシュに残らないのだ")
}

func TestBuilder_ConcurrentBuildsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	lister := &FakeLister{
		ListFunc: func(ctx context.Context, folder string, mediaType int) ([]string, error) {
			<-release
			return []string{"localized_media_1_a.png"}, nil
		},
	}
	b := NewBuilder(lister, NewCache(0), nil)

	var wg sync.WaitGroup
	results := make([]Map, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Build(context.Background(), alice)
		}(i)
	}

	// 全員が singleflight に合流するまで少し待つのだ
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
	for _, m := range results {
		assert.Equal(t, "/user/images/Alice/localized_media_1_a.png", m["a"])
	}
}

func TestCache(t *testing.T) {
	c := NewCache(0)
	_, ok := c.Get("a.png")
	assert.False(t, ok)

	c.Put("a.png", Map{"k": "/v"})
	c.Put("", Map{"ignored": "/x"})
	m, ok := c.Get("a.png")
	require.True(t, ok)
	assert.Equal(t, "/v", m["k"])
	assert.Equal(t, 1, c.Len())

	before := c.Generation()
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, before+1, c.Generation())
}

func TestCache_TTL(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	c.Put("a.png", Map{"k": "/v"})
	_, ok := c.Get("a.png")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("a.png")
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	m := Map{"cover_art": "/user/images/Alice/localized_media_17_cover_art.png"}

	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{name: "拡張子が違っても一致", url: "https://host/path/cover_art.jpeg", want: m["cover_art"], wantOK: true},
		{name: "エンコードと記号が違っても一致", url: "https://host/path/cover%20art.webp?size=large", want: m["cover_art"], wantOK: true},
		{name: "記号違いも同じキーになる", url: "https://host/path/cover!art.png", want: m["cover_art"], wantOK: true},
		{name: "大文字小文字は区別する", url: "https://host/path/Cover Art!!.jpeg", wantOK: false},
		{name: "エンコードされたスラッシュで別のファイルに当たらない", url: "https://host/path/album%2Fcover_art.png", wantOK: false},
		{name: "空URL", url: "", wantOK: false},
		{name: "ファイル名なし", url: "https://host/path/", wantOK: false},
		{name: "キーが空", url: "https://host/path/.png", wantOK: false},
		{name: "未登録", url: "https://host/path/other.png", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(m, tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Lookup(nil, "https://host/path/cover_art.png")
	assert.False(t, ok)
}
