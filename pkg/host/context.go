package host

import (
	"sync"

	"github.com/shouni/go-st-localizer/pkg/domain"
)

// Context はホストのコンテキストオブジェクトのうち、ローカライザが読む部分です。
type Context interface {
	// CharacterID は現在アクティブなキャラクターのIDです。いなければ空文字です。
	CharacterID() string
	// Character は ID に対応するキャラクターを返します。
	Character(id string) (domain.CharacterRef, bool)
	// ExtensionSettings は key に保存された拡張設定の blob を返します。なければ nil です。
	ExtensionSettings(key string) []byte
	// Events はライフサイクルイベントの購読口です。
	Events() EventSource
}

// CurrentCharacter はアクティブなキャラクターを解決します。
func CurrentCharacter(c Context) (domain.CharacterRef, bool) {
	if c == nil {
		return domain.CharacterRef{}, false
	}
	id := c.CharacterID()
	if id == "" {
		return domain.CharacterRef{}, false
	}
	return c.Character(id)
}

// State はメモリ上で保持するホストコンテキストなのだ。
// HTTP サーバーやテストで、ブラウザ内のホストの代わりを務めるのだ。
type State struct {
	mu          sync.RWMutex
	characters  domain.CharactersMap
	characterID string
	settings    map[string][]byte
	bus         *Bus
}

// NewState は空の State を生成します。
func NewState() *State {
	return &State{
		characters: make(domain.CharactersMap),
		settings:   make(map[string][]byte),
		bus:        NewBus(),
	}
}

func (s *State) CharacterID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.characterID
}

func (s *State) Character(id string) (domain.CharacterRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.characters.FindCharacter(id)
	if c == nil {
		return domain.CharacterRef{}, false
	}
	return *c, true
}

func (s *State) ExtensionSettings(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.settings[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), raw...)
}

func (s *State) Events() EventSource {
	return s.bus
}

// Bus はイベントを発火するための Bus を返します。
func (s *State) Bus() *Bus {
	return s.bus
}

// PutCharacter はキャラクターを登録または更新します。
func (s *State) PutCharacter(id string, c domain.CharacterRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[id] = c
}

// SetActive はアクティブなキャラクターを切り替えます。
func (s *State) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characterID = id
}

// SetSettings は拡張設定の blob を保存します。
func (s *State) SetSettings(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = append([]byte(nil), raw...)
}
