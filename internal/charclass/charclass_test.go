package charclass

import "testing"

import "github.com/stretchr/testify/require"

func TestIsTokenChar(t *testing.T) {
	require.True(t, IsTokenChar('A'))
	require.True(t, IsTokenChar('9'))
	require.True(t, IsTokenChar('-'))
	require.True(t, IsTokenChar('~'))
	require.False(t, IsTokenChar(' '))
	require.False(t, IsTokenChar('('))
	require.False(t, IsTokenChar('\t'))
}

func TestIsValueChar(t *testing.T) {
	require.True(t, IsValueChar(' '))
	require.True(t, IsValueChar('\t'))
	require.True(t, IsValueChar('A'))
	require.True(t, IsValueChar(0x80))
	require.False(t, IsValueChar(0x00))
	require.False(t, IsValueChar(0x7F))
}

func TestHexValue(t *testing.T) {
	require.Equal(t, 10, HexValue('a'))
	require.Equal(t, 10, HexValue('A'))
	require.Equal(t, 9, HexValue('9'))
	require.Equal(t, -1, HexValue('g'))
}

func TestIsDigitAndWhitespace(t *testing.T) {
	require.True(t, IsDigit('5'))
	require.False(t, IsDigit('a'))
	require.True(t, IsWhitespace(' '))
	require.True(t, IsWhitespace('\t'))
	require.False(t, IsWhitespace('x'))
}
