package httpheader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapCaseInsensitiveLookupPreservesOriginalCase(t *testing.T) {
	m := NewMap()
	m.Add("Content-Type", "text/plain")
	require.Equal(t, "text/plain", m.Get("content-type"))
	require.Equal(t, []string{"Content-Type"}, m.Names())
}

func TestMapPreservesFirstSeenOrder(t *testing.T) {
	m := NewMap()
	m.Add("X-B", "1")
	m.Add("X-A", "2")
	m.Add("X-B", "3")
	require.Equal(t, []string{"X-B", "X-A"}, m.Names())
	require.Equal(t, []string{"1", "3"}, m.Values("x-b"))
}

func TestMapSetReplacesAllValues(t *testing.T) {
	m := NewMap()
	m.Add("X-A", "1")
	m.Add("X-A", "2")
	m.Set("x-a", "3")
	require.Equal(t, []string{"3"}, m.Values("X-A"))
}

func TestMapDel(t *testing.T) {
	m := NewMap()
	m.Add("X-A", "1")
	m.Del("x-a")
	require.False(t, m.Has("X-A"))
}
