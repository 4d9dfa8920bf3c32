package host

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MessageIDAttr はメッセージコンテナを識別する属性名です。
	MessageIDAttr = "mesid"
	// MessageTextClass はメッセージ本文のコンテナのクラス名です。
	MessageTextClass = "mes_text"
	// ChatContainerID はメッセージを追加する先の要素IDです。
	ChatContainerID = "chat"
)

// DefaultPanelClasses はキャラクター情報パネルとみなすクラス名なのだ。
var DefaultPanelClasses = []string{"character_description", "creator_notes", "alternate_greetings", "character_info_panel"}

// Document はローカライザが書き換えるドキュメントです。
// ツリーへのアクセスは必ず fn の中で行い、fn の外にノードを持ち出さないこと。
type Document interface {
	// WithMessage はメッセージ mesID の本文コンテナに対して fn を呼びます。見つからなければ false です。
	WithMessage(mesID int, fn func(root *html.Node)) bool
	// WithPanels は情報パネルそれぞれに対して fn を呼び、呼んだ数を返します。
	WithPanels(fn func(root *html.Node)) int
}

// ReplaceObserver は、メッセージの中身が差し替えられたことを通知できる Document です。
type ReplaceObserver interface {
	// ObserveReplace は、window の間に mesID の中身が差し替えられたら fn を1回だけ呼びます。
	ObserveReplace(mesID int, window time.Duration, fn func())
}

type replaceWatch struct {
	deadline time.Time
	fn       func()
}

// HTMLDocument は x/net/html のツリーを保持する Document と ReplaceObserver の実装なのだ。
type HTMLDocument struct {
	mu           sync.Mutex
	root         *html.Node
	panelClasses []string
	watches      map[int][]replaceWatch
	now          func() time.Time
}

// DocumentOption は HTMLDocument の生成オプションです。
type DocumentOption func(*HTMLDocument)

// WithPanelClasses は情報パネルとみなすクラス名を差し替えます。
func WithPanelClasses(classes ...string) DocumentOption {
	return func(d *HTMLDocument) { d.panelClasses = classes }
}

// WithClock は観測期限の判定に使う時計を差し替えます。
func WithClock(now func() time.Time) DocumentOption {
	return func(d *HTMLDocument) { d.now = now }
}

// ParseDocument は r から HTML を読み込んで HTMLDocument を生成します。
func ParseDocument(r io.Reader, opts ...DocumentOption) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗しました: %w", err)
	}
	d := &HTMLDocument{
		root:         root,
		panelClasses: DefaultPanelClasses,
		watches:      make(map[int][]replaceWatch),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewChatDocument は空のチャットコンテナだけを持つドキュメントを生成します。
func NewChatDocument(opts ...DocumentOption) *HTMLDocument {
	d, err := ParseDocument(strings.NewReader(`<html><body><div id="`+ChatContainerID+`"></div></body></html>`), opts...)
	if err != nil {
		// 固定の HTML なので失敗しないのだ
		panic(err)
	}
	return d
}

func (d *HTMLDocument) WithMessage(mesID int, fn func(root *html.Node)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	text := d.messageText(mesID)
	if text == nil {
		return false
	}
	fn(text)
	return true
}

func (d *HTMLDocument) WithPanels(fn func(root *html.Node)) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	panels := findAll(d.root, func(n *html.Node) bool {
		for _, c := range d.panelClasses {
			if hasClass(n, c) {
				return true
			}
		}
		return false
	})
	for _, p := range panels {
		fn(p)
	}
	return len(panels)
}

func (d *HTMLDocument) ObserveReplace(mesID int, window time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	live := d.watches[mesID][:0]
	for _, w := range d.watches[mesID] {
		if !now.After(w.deadline) {
			live = append(live, w)
		}
	}
	d.watches[mesID] = append(live, replaceWatch{deadline: now.Add(window), fn: fn})
}

// RenderMessage はメッセージ mesID の本文を fragment で置き換えます。
// メッセージがなければチャットコンテナの末尾に作るのだ。
// 期限内の ReplaceObserver の登録があれば、ロックを外してから1回ずつ呼ぶのだ。
func (d *HTMLDocument) RenderMessage(mesID int, fragment string) error {
	d.mu.Lock()
	text := d.messageText(mesID)
	if text == nil {
		var err error
		text, err = d.appendMessage(mesID)
		if err != nil {
			d.mu.Unlock()
			return err
		}
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), text)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("メッセージ %d のパースに失敗しました: %w", mesID, err)
	}
	for c := text.FirstChild; c != nil; {
		next := c.NextSibling
		text.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		text.AppendChild(n)
	}

	due := d.takeWatches(mesID)
	d.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return nil
}

// Render はドキュメント全体を書き出します。
func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// MessageHTML はメッセージ本文の HTML を返します。
func (d *HTMLDocument) MessageHTML(mesID int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	text := d.messageText(mesID)
	if text == nil {
		return "", false
	}
	var b strings.Builder
	for c := text.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", false
		}
	}
	return b.String(), true
}

func (d *HTMLDocument) takeWatches(mesID int) []func() {
	ws := d.watches[mesID]
	delete(d.watches, mesID)

	now := d.now()
	due := make([]func(), 0, len(ws))
	for _, w := range ws {
		if now.After(w.deadline) {
			continue
		}
		due = append(due, w.fn)
	}
	return due
}

func (d *HTMLDocument) messageText(mesID int) *html.Node {
	id := strconv.Itoa(mesID)
	msg := findFirst(d.root, func(n *html.Node) bool {
		v, ok := attr(n, MessageIDAttr)
		return ok && v == id
	})
	if msg == nil {
		return nil
	}
	if text := findFirst(msg, func(n *html.Node) bool { return hasClass(n, MessageTextClass) }); text != nil {
		return text
	}
	return msg
}

func (d *HTMLDocument) appendMessage(mesID int) (*html.Node, error) {
	chat := findFirst(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == ChatContainerID
	})
	if chat == nil {
		chat = findFirst(d.root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	}
	if chat == nil {
		return nil, fmt.Errorf("メッセージ %d を追加する場所がありません", mesID)
	}

	msg := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "class", Val: "mes"},
			{Key: MessageIDAttr, Val: strconv.Itoa(mesID)},
		},
	}
	text := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: MessageTextClass}},
	}
	msg.AppendChild(text)
	chat.AppendChild(msg)
	return text, nil
}

func attr(n *html.Node, key string) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll は一致した要素の子孫には潜らないのだ。入れ子のパネルを二重に数えないためなのだ。
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, match)...)
	}
	return out
}
