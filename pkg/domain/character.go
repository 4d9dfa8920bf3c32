package domain

import (
	"fmt"
	"strings"
)

// CharacterRef はホストが保持するキャラクターレコードのうち、このシステムが読む部分なのだ。
// Avatar はキャッシュキー、Name はファイル一覧の問い合わせとフォルダ名の導出に使うのだ。
type CharacterRef struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// String はキャラクターの情報を文字列で返すのだ。
func (c CharacterRef) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Avatar)
}

// HasIdentity は名前が設定されているかを返します。名前がなければ一覧を問い合わせられません。
func (c CharacterRef) HasIdentity() bool {
	return strings.TrimSpace(c.Name) != ""
}

// Cacheable はキャッシュキーとなる Avatar を持っているかを返します。
func (c CharacterRef) Cacheable() bool {
	return c.Avatar != ""
}

// CharactersMap はホストのキャラクターIDをキーとした検索用マップなのだ。
type CharactersMap map[string]CharacterRef

// FindCharacter は IDからキャラクター情報を特定します。
func (m CharactersMap) FindCharacter(id string) *CharacterRef {
	if m == nil || id == "" {
		return nil
	}
	if char, ok := m[id]; ok {
		res := char
		return &res
	}
	return nil
}
