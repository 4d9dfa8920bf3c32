package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterRef_String(t *testing.T) {
	c := CharacterRef{Name: "ずんだもん", Avatar: "zundamon.png"}
	assert.Equal(t, "ずんだもん (zundamon.png)", c.String())
}

func TestCharacterRef_Identity(t *testing.T) {
	assert.False(t, CharacterRef{}.HasIdentity())
	assert.False(t, CharacterRef{Name: "  "}.HasIdentity())
	assert.True(t, CharacterRef{Name: "Alice"}.HasIdentity())
	assert.False(t, CharacterRef{Name: "Alice"}.Cacheable())
	assert.True(t, CharacterRef{Name: "Alice", Avatar: "alice.png"}.Cacheable())
}

func TestCharactersMap_FindCharacter(t *testing.T) {
	chars := CharactersMap{"0": {Name: "Alice", Avatar: "alice.png"}}

	found := chars.FindCharacter("0")
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found.Name)

	// 返り値を書き換えてもマップ側には影響しないのだ
	found.Name = "changed"
	assert.Equal(t, "Alice", chars["0"].Name)

	assert.Nil(t, chars.FindCharacter("1"))
	assert.Nil(t, chars.FindCharacter(""))
	assert.Nil(t, CharactersMap(nil).FindCharacter("0"))
}

func TestSettings_IsEnabledFor(t *testing.T) {
	t.Run("設定がなければ無効", func(t *testing.T) {
		var s *Settings
		assert.False(t, s.IsEnabledFor("alice.png"))
	})

	t.Run("グローバルフラグに従う", func(t *testing.T) {
		assert.True(t, (&Settings{Enabled: true}).IsEnabledFor("alice.png"))
		assert.False(t, (&Settings{}).IsEnabledFor("alice.png"))
	})

	t.Run("キャラクターごとの上書きが優先される", func(t *testing.T) {
		s := &Settings{
			Enabled:            false,
			CharacterOverrides: map[string]bool{"alice.png": true, "bob.png": false},
		}
		assert.True(t, s.IsEnabledFor("alice.png"))
		assert.False(t, s.IsEnabledFor("bob.png"))
		assert.False(t, s.IsEnabledFor("carol.png"))

		s.Enabled = true
		assert.False(t, s.IsEnabledFor("bob.png"))
		assert.True(t, s.IsEnabledFor("carol.png"))
	})
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = ParseSettings([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = ParseSettings([]byte(`{"enabled":true,"characterOverrides":{"a.png":false}}`))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.Enabled)
	assert.False(t, s.IsEnabledFor("a.png"))

	_, err = ParseSettings([]byte(`{ invalid json }`))
	assert.Error(t, err)
}
