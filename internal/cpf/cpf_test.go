package cpf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"52998224725", true},
		{"529.982.247-25", true},
		{"11144477735", true},
		{"52998224724", false},
		{"11111111111", false},
		{"00000000000", false},
		{"1234567890", false},
		{"123456789012", false},
		{"", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.in))
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "52998224725", Sanitize("529.982.247-25"))
	assert.Equal(t, "", Sanitize("..-"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "529.982.247-25", Format("52998224725"))
	assert.Equal(t, "123", Format("123"))
}

func TestGenerate(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		d := Generate(r)
		assert.Len(t, d, 11)
		assert.True(t, IsValid(d), d)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 190)
}
