package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Spanish(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Córdoba Capital", "cordoba-capital"},
		{"Mate & Bombilla", "mate-y-bombilla"},
		{"Ñandú   Artesanal!", "nandu-artesanal"},
		{"Panadería San José", "panaderia-san-jose"},
		{"ALL UPPER CASE", "all-upper-case"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestGenerate_EdgeCases(t *testing.T) {
	assert.Equal(t, "", Generate(""))
	assert.Equal(t, "", Generate("   "))
	assert.Equal(t, "a", Generate("a"))
	assert.Equal(t, "123", Generate("123"))
	assert.Equal(t, "hello", Generate("-hello-"))
}

func TestGenerate_Truncates(t *testing.T) {
	got := Generate(strings.Repeat("palabra ", 30))
	assert.LessOrEqual(t, len(got), maxLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "yerba", WithSuffix("yerba", 0))
	assert.Equal(t, "yerba", WithSuffix("yerba", 1))
	assert.Equal(t, "yerba-3", WithSuffix("yerba", 3))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("mate-de-calabaza"))
	assert.False(t, IsValid("Mate De Calabaza"))
	assert.False(t, IsValid(""))
}
