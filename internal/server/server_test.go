package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-st-localizer/pkg/binder"
	"github.com/shouni/go-st-localizer/pkg/host"
	"github.com/shouni/go-st-localizer/pkg/localizer"

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
	return []string{"localized_media_17_cover_art.png"}, nil
}

// immediateScheduler は遅延なしでその場で実行するのだ。
type immediateScheduler struct{}

func (immediateScheduler) AfterFunc(d time.Duration, fn func()) { fn() }

type testEnv struct {
	srv    *httptest.Server
	lister *FakeLister
	cache  *localizer.Cache
	state  *host.State
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	lister := &FakeLister{}
	cache := localizer.NewCache(0)
	builder := localizer.NewBuilder(lister, cache, nil)
	state := host.NewState()
	doc := host.NewChatDocument()
	b := binder.New(builder, func() (host.Context, host.Document, bool) {
		return state, doc, true
	}, binder.WithScheduler(immediateScheduler{}))
	b.Start(context.Background())

	s := New(Config{}, builder, state, doc, b, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, lister: lister, cache: cache, state: state}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestServer_Healthz(t *testing.T) {
	env := newTestEnv(t)
	resp, out := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "subscribed", out["binder"])
}

func TestServer_LocalizeMap(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.do(t, http.MethodPost, "/api/localize/map", `{"name":"Alice","avatar":"alice.png"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m, ok := out["map"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/user/images/Alice/localized_media_17_cover_art.png", m["cover_art"])

	resp, _ = env.do(t, http.MethodPost, "/api/localize/map", `{"avatar":"alice.png"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/localize/map", `{ invalid`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_LocalizeHTML(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name":"Alice","avatar":"alice.png","html":"<img src=\"https://cdn.example.com/cover_art.jpg\">"}`
	resp, out := env.do(t, http.MethodPost, "/api/localize/html", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `<img src="/user/images/Alice/localized_media_17_cover_art.png"/>`, out["html"])
	assert.Equal(t, float64(1), out["rewritten"])
}

func TestServer_RenderMessageDrivesBinder(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPut, "/api/host/characters/0", `{"name":"Alice","avatar":"alice.png"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPut, "/api/host/active", `{"characterId":"0"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	msg := `{"html":"<img src=\"https://cdn.example.com/cover_art.jpg\">"}`

	t.Run("無効なら書き換えないのだ", func(t *testing.T) {
		resp, out := env.do(t, http.MethodPut, "/api/chat/messages/0", msg)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `<img src="https://cdn.example.com/cover_art.jpg"/>`, out["html"])
		assert.Equal(t, int32(0), env.lister.calls.Load())
	})

	t.Run("有効にすると書き換えるのだ", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPut, "/api/host/settings", `{"enabled":true}`)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, out := env.do(t, http.MethodPut, "/api/chat/messages/0", msg)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `<img src="/user/images/Alice/localized_media_17_cover_art.png"/>`, out["html"])

		resp, out = env.do(t, http.MethodGet, "/api/chat/messages/0", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `<img src="/user/images/Alice/localized_media_17_cover_art.png"/>`, out["html"])
	})

	t.Run("チャット切り替えでキャッシュを捨てるのだ", func(t *testing.T) {
		require.Equal(t, 1, env.cache.Len())
		resp, out := env.do(t, http.MethodPost, "/api/events", `{"event":"CHAT_CHANGED"}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, float64(1), out["handlers"])
		// 即時スケジューラなのでパネル処理で作り直されているのだ
		assert.Equal(t, int32(2), env.lister.calls.Load())
	})

	t.Run("壊れた設定は受け付けないのだ", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPut, "/api/host/settings", `{ invalid`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_EventsValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/events", `{"event":"APP_READY"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/chat/messages/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/chat/messages/9", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ClearCache(t *testing.T) {
	env := newTestEnv(t)
	env.cache.Put("alice.png", localizer.Map{"k": "/v"})

	resp, _ := env.do(t, http.MethodDelete, "/api/cache", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, env.cache.Len())
}

func TestServer_GetChat(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/api/chat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
