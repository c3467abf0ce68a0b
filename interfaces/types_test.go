package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMnemonic(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Mnemonic
	}{
		{"simple", "alpha bravo charlie", Mnemonic{"alpha", "bravo", "charlie"}},
		{"mixed whitespace", " alpha\tbravo \n charlie ", Mnemonic{"alpha", "bravo", "charlie"}},
		{"case folded", "Alpha BRAVO", Mnemonic{"alpha", "bravo"}},
		{"empty", "", Mnemonic{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMnemonic(tc.input))
		})
	}
}

func TestMnemonicString(t *testing.T) {
	m := Mnemonic{"alpha", "bravo", "charlie"}
	assert.Equal(t, "alpha bravo charlie", m.String())
	assert.Equal(t, m, ParseMnemonic(m.String()), "String and ParseMnemonic should round-trip")
}

func TestMnemonicEqual(t *testing.T) {
	assert.True(t, Mnemonic{"a", "b"}.Equal(Mnemonic{"a", "b"}))
	assert.False(t, Mnemonic{"a", "b"}.Equal(Mnemonic{"a"}))
	assert.False(t, Mnemonic{"a", "b"}.Equal(Mnemonic{"a", "c"}))
	assert.True(t, Mnemonic{}.Equal(nil))
}
