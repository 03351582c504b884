package protocol

import (
	"testing"

	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"50000", true},
		{"-12", true},
		{"", false},
		{"-", false},
		{"+5", false},
		{"1.5", false},
		{"12A", false},
		{"--1", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNumber(tt.in))
		})
	}
}

func TestInt(t *testing.T) {
	n, err := Int("-300")
	require.NoError(t, err)
	assert.Equal(t, -300, n)

	_, err = Int("abc")
	assert.ErrorIs(t, err, dispatcher.ErrNonNumericParameter)

	_, err = Int("99999999999999999999999")
	assert.ErrorIs(t, err, dispatcher.ErrNonNumericParameter)
}

func TestUnsigned(t *testing.T) {
	n, err := Unsigned("250")
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	_, err = Unsigned("-250")
	assert.ErrorIs(t, err, dispatcher.ErrNonNumericParameter)
}

func TestFormatPosition(t *testing.T) {
	assert.Equal(t, "50000", FormatPosition(50000))
	assert.Equal(t, "100.5", FormatPosition(100.5))
	assert.Equal(t, "-21", FormatPosition(-21))
	assert.Equal(t, "0", FormatPosition(0))
}
