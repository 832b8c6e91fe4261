package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueIfNotExistKeepsFirstSeenOrder(t *testing.T) {
	m := New[string, int]()

	assert.True(t, m.EnqueueIfNotExist("b", 1))
	assert.True(t, m.EnqueueIfNotExist("a", 2))
	assert.False(t, m.EnqueueIfNotExist("b", 3))

	assert.Equal(t, []string{"b", "a"}, m.Keys())
	assert.Equal(t, []int{1, 2}, m.AsSlice())
	assert.Equal(t, 1, m.Get("b"))
	assert.Equal(t, 2, m.Len())
}

func TestSetKeepsPosition(t *testing.T) {
	m := New[string, int]()

	m.Set("x", 1)
	m.Set("y", 1)
	m.Set("x", 5)

	assert.Equal(t, []string{"x", "y"}, m.Keys())
	assert.Equal(t, 5, m.Get("x"))
	assert.Equal(t, 0, m.Get("missing"))
}

func TestForeachAborts(t *testing.T) {
	m := New[int, string]()
	for i := 0; i < 5; i++ {
		m.Set(i, "v")
	}

	var seen []int
	m.Foreach(func(k int, _ string) bool {
		seen = append(seen, k)
		return k < 2
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
}
