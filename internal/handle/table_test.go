package handle

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resource struct {
	name string
}

func TestTable_AddGet(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	r := &resource{name: "a"}

	h := table.Add(r, 1)
	assert.True(t, strings.HasPrefix(string(h), "test.Resource:"))

	got, err := table.Get(h)
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestTable_AddTwiceReturnsSameHandle(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	r := &resource{}

	h1 := table.Add(r, 1)
	h2 := table.Add(r, 2)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, table.Len())

	owner, ok := table.Owner(r)
	require.True(t, ok)
	assert.Equal(t, Owner(1), owner)
}

func TestTable_DistinctHandles(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	h1 := table.Add(&resource{}, 1)
	h2 := table.Add(&resource{}, 1)
	assert.NotEqual(t, h1, h2)
}

func TestTable_Get_Errors(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	table.Add(&resource{}, 1)

	tests := []struct {
		name     string
		handle   Handle
		mismatch bool
	}{
		{"empty", "", false},
		{"no separator", "test.Resource", false},
		{"missing id", "test.Resource:", false},
		{"unknown id", "test.Resource:00000000-0000-0000-0000-000000000000", false},
		{"wrong kind", "other.Kind:00000000-0000-0000-0000-000000000000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Get(tt.handle)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.Equal(t, tt.mismatch, errors.Is(err, ErrTypeMismatch))
		})
	}
}

func TestTable_StaleHandleFails(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	r := &resource{}
	h := table.Add(r, 1)

	assert.True(t, table.Remove(r))
	assert.False(t, table.Remove(r))

	_, err := table.Get(h)
	assert.ErrorIs(t, err, ErrNotFound)

	// Re-adding the same value mints a fresh identity
	h2 := table.Add(r, 1)
	assert.NotEqual(t, h, h2)
	_, err = table.Get(h)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTable_AllAndFind(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	a := &resource{name: "a"}
	b := &resource{name: "b"}
	c := &resource{name: "c"}
	table.Add(a, 1)
	table.Add(b, 2)
	table.Add(c, 1)

	assert.Equal(t, []*resource{a, b, c}, table.All())
	assert.Equal(t, []*resource{a, c}, table.Find(1))
	assert.Equal(t, []*resource{b}, table.Find(2))
	assert.Empty(t, table.Find(3))

	table.Remove(a)
	assert.Equal(t, []*resource{b, c}, table.All())
	assert.Equal(t, []*resource{c}, table.Find(1))
	assert.False(t, table.Contains(a))
	assert.True(t, table.Contains(b))
}

func TestTable_HandleLookup(t *testing.T) {
	table := NewTable[*resource]("test.Resource")
	r := &resource{}
	h := table.Add(r, 1)

	got, ok := table.Handle(r)
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = table.Handle(&resource{})
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	kind, id, err := Parse(New("k", "123"))
	require.NoError(t, err)
	assert.Equal(t, Kind("k"), kind)
	assert.Equal(t, "123", id)
}
