// Package stclient は、ホストアプリケーションのサーバーに対する最小限のクライアントです。
// CSRF トークンの取得と、キャラクターごとの保存済みファイル一覧の取得だけを扱います。
package stclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
	"golang.org/x/time/rate"
)

const (
	// CSRFTokenPath は CSRF トークン取得のエンドポイントです。
	CSRFTokenPath = "/csrf-token"
	// ListImagesPath は保存済みファイル一覧のエンドポイントです。
	ListImagesPath = "/api/images/list"
	// CSRFHeader はトークンを載せるヘッダ名で、フォールバック時のクッキー名でもあります。
	CSRFHeader = "X-CSRF-Token"

	DefaultTimeout = 30 * time.Second
	// CSRFRetryInterval はトークンが見つからなかった後、再取得を控える時間です。
	CSRFRetryInterval = 30 * time.Second
)

// ErrUnexpectedStatus はサーバーが成功以外のステータスを返したことを表します。
var ErrUnexpectedStatus = errors.New("stclient: unexpected status")

// Doer は HTTP リクエストを実行できるものなら何でもよいのだ。
// *http.Client も httpkit のクライアントもこれを満たすのだ。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client はホストサーバーとの通信を担当します。
type Client struct {
	baseURL *url.URL
	doer    Doer
	jar     http.CookieJar
	limiter *rate.Limiter
	logger  *slog.Logger

	now func() time.Time

	mu             sync.Mutex
	token          string
	tokenMissUntil time.Time
}

// Option は Client の生成オプションです。
type Option func(*Client)

// WithDoer は通信に使う HTTP クライアントを差し替えます。
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithCookieJar はセッションクッキーと CSRF クッキーの保管先を設定します。
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.jar = jar }
}

// WithRateLimiter は一覧リクエストの流量制限を設定します。
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithClock は時刻の取得元を差し替えます。テスト用なのだ。
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger はロガーを設定します。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New は baseURL に対する Client を生成します。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLの解析に失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ベースURLにはスキームとホストが必要です: %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = httpkit.New(DefaultTimeout, httpkit.WithSkipNetworkValidation(true))
	}
	return c, nil
}

// CSRFToken はトークンを返します。取得に成功したトークンは使い回すのだ。
// エンドポイントが失敗した場合は同名のクッキーを読み、それもなければ空文字を返します。
// 見つからなかったときは CSRFRetryInterval の間、問い合わせずに空文字を返すのだ。
func (c *Client) CSRFToken(ctx context.Context) string {
	c.mu.Lock()
	if c.token != "" || c.now().Before(c.tokenMissUntil) {
		token := c.token
		c.mu.Unlock()
		return token
	}
	c.mu.Unlock()

	// 通信中はロックを持たないのだ
	token, err := c.fetchCSRFToken(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "CSRFトークンの取得に失敗したのだ。クッキーを探すのだ", "error", err)
		token = c.cookieValue(CSRFHeader)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		c.logger.DebugContext(ctx, "CSRFトークンが見つからないのだ。トークンなしで続行するのだ")
		c.tokenMissUntil = c.now().Add(CSRFRetryInterval)
		return c.token
	}
	c.token = token
	return token
}

func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(CSRFTokenPath), nil)
	if err != nil {
		return "", err
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(req, &body); err != nil {
		return "", err
	}
	return body.Token, nil
}

// ListFiles は folder (キャラクター名) に保存されているファイル名の一覧を返します。
// mediaType は asset.MediaTypeAll のようなホスト側のメディア種別です。
func (c *Client) ListFiles(ctx context.Context, folder string, mediaType int) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レートリミッターの待機に失敗しました: %w", err)
		}
	}

	payload, err := json.Marshal(listRequest{Folder: folder, Type: mediaType})
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(ListImagesPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.CSRFToken(ctx); token != "" {
		req.Header.Set(CSRFHeader, token)
	}

	var entries []FileEntry
	if err := c.doJSON(req, &entries); err != nil {
		return nil, fmt.Errorf("ファイル一覧の取得に失敗しました (folder=%s): %w", folder, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	c.attachCookies(req)

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.storeCookies(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s -> %d %s", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}
	return nil
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + p
	return u.String()
}

func (c *Client) attachCookies(req *http.Request) {
	if c.jar == nil {
		return
	}
	for _, ck := range c.jar.Cookies(req.URL) {
		req.AddCookie(ck)
	}
}

func (c *Client) storeCookies(resp *http.Response) {
	if c.jar == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.jar.SetCookies(c.baseURL, cookies)
	}
}

func (c *Client) cookieValue(name string) string {
	if c.jar == nil {
		return ""
	}
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
