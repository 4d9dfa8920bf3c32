// Package rewriter は、HTML のノードツリー中のリモートメディア要素の src を
// ローカルパスへ書き換えます。要素の追加や削除は一切しません。
package rewriter

import (
	"fmt"
	"strings"

	"github.com/shouni/go-st-localizer/pkg/localizer"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// remoteSchemes はリモートとみなす src の接頭辞なのだ。
var remoteSchemes = []string{"http://", "https://"}

// LocalizeMediaIn は root の子孫にあるリモートメディア要素の src を、m で解決できたものだけ書き換えます。
// 書き換えた要素の数を返します。書き換え後の src はローカルパスになり
// リモート判定から外れるので、もう一度呼んでも何も変わらないのだ。
func LocalizeMediaIn(root *html.Node, m localizer.Map) int {
	if root == nil || len(m) == 0 {
		return 0
	}

	count := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && isMediaElement(c) {
				if rewriteSrc(c, m) {
					count++
				}
			}
			walk(c)
		}
	}
	walk(root)
	return count
}

// LocalizeHTML は HTML 断片をパースして書き換え、文字列に戻します。
func LocalizeHTML(fragment string, m localizer.Map) (string, int, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return "", 0, fmt.Errorf("HTML断片のパースに失敗しました: %w", err)
	}

	// ParseFragment の結果は親を持たないので、仮の親にぶら下げてから歩くのだ
	wrapper := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		wrapper.AppendChild(n)
	}
	count := LocalizeMediaIn(wrapper, m)

	var b strings.Builder
	for c := wrapper.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", 0, fmt.Errorf("HTMLの書き出しに失敗しました: %w", err)
		}
	}
	return b.String(), count, nil
}

// isMediaElement は img / video / audio と、video・audio 内の source を対象にするのだ。
func isMediaElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Img, atom.Video, atom.Audio:
		return true
	case atom.Source:
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && (p.DataAtom == atom.Video || p.DataAtom == atom.Audio) {
				return true
			}
		}
	}
	return false
}

func rewriteSrc(n *html.Node, m localizer.Map) bool {
	for i, attr := range n.Attr {
		if attr.Namespace != "" || attr.Key != "src" {
			continue
		}
		if !IsRemote(attr.Val) {
			return false
		}
		local, ok := localizer.Lookup(m, attr.Val)
		if !ok {
			return false
		}
		n.Attr[i].Val = local
		return true
	}
	return false
}

// IsRemote は src がリモートのスキームで始まるかを返します。
func IsRemote(src string) bool {
	lower := strings.ToLower(strings.TrimSpace(src))
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
