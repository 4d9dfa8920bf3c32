package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultSettingsKey はホストの extensionSettings 上でこの拡張が使うキーです。
const DefaultSettingsKey = "st-media-localizer"

// Settings はホストが保存している拡張設定のうち、ローカライズの有効化に関わる部分です。
type Settings struct {
	// Enabled は全キャラクター共通の有効フラグです。
	Enabled bool `json:"enabled"`
	// CharacterOverrides は Avatar ごとの上書き設定で、存在すれば Enabled より優先されます。
	CharacterOverrides map[string]bool `json:"characterOverrides,omitempty"`
}

// ParseSettings はホストの設定 blob をデコードします。空の blob は nil を返します。
func ParseSettings(raw []byte) (*Settings, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("拡張設定のデコードに失敗しました: %w", err)
	}
	return &s, nil
}

// IsEnabledFor は、指定した Avatar のキャラクターでローカライズが有効かを返します。
// 上書き設定があればそれを使い、なければグローバルの Enabled に従うのだ。
// 設定そのものがない場合は無効なのだ。
func (s *Settings) IsEnabledFor(avatar string) bool {
	if s == nil {
		return false
	}
	if avatar != "" {
		if v, ok := s.CharacterOverrides[avatar]; ok {
			return v
		}
	}
	return s.Enabled
}
