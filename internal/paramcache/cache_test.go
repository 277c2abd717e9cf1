package paramcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"", Path{}},
		{"choices", Path{"choices"}},
		{"data.rt", Path{"data", "rt"}},
		{"choices[1].label", Path{"choices", "1", "label"}},
		{"grid[0][2]", Path{"grid", "0", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePath(tt.in))
		})
	}
}

func TestPath_String(t *testing.T) {
	assert.Equal(t, "choices[1].label", Path{"choices", "1", "label"}.String())
	assert.Equal(t, "data.rt", Path{"data", "rt"}.String())
	assert.Equal(t, "", Path{}.String())
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "questions"

	a := base.Child("0")
	b := base.Child("1")

	assert.Equal(t, Path{"questions", "0"}, a)
	assert.Equal(t, Path{"questions", "1"}, b)
}

func TestCache_LookupNested(t *testing.T) {
	root := map[string]any{
		"stimulus": "hello",
		"data": map[string]any{
			"block": 2,
		},
		"choices": []any{"f", "j"},
	}
	c := New(root)

	v, ok := c.Lookup(Path{"stimulus"})
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = c.Lookup(Path{"data", "block"})
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Lookup(Path{"choices", "1"})
	require.True(t, ok)
	assert.Equal(t, "j", v)

	// Intermediate paths are cached along the way.
	assert.True(t, c.Has(Path{"data"}))
	assert.True(t, c.Has(Path{"choices"}))
}

func TestCache_LookupMissing(t *testing.T) {
	c := New(map[string]any{
		"choices": []string{"a"},
		"data":    "not-an-object",
	})

	tests := []Path{
		{"missing"},
		{"choices", "3"},
		{"choices", "-1"},
		{"choices", "first"},
		{"data", "rt"},
		{"missing", "deeper", "still"},
	}
	for _, path := range tests {
		t.Run(path.String(), func(t *testing.T) {
			v, ok := c.Lookup(path)
			assert.False(t, ok)
			assert.Nil(t, v)
		})
	}
}

func TestCache_SetIsAuthoritativeUntilReset(t *testing.T) {
	root := map[string]any{"stimulus": "raw"}
	c := New(root)

	c.Set(Path{"stimulus"}, "resolved")
	v, ok := c.Lookup(Path{"stimulus"})
	require.True(t, ok)
	assert.Equal(t, "resolved", v)

	c.Reset()
	v, ok = c.Lookup(Path{"stimulus"})
	require.True(t, ok)
	assert.Equal(t, "raw", v)
	assert.Equal(t, 2, c.Len())
}

func TestCache_LookupIdempotentAcrossReset(t *testing.T) {
	c := New(map[string]any{"data": map[string]any{"rt": 512}})

	first, ok := c.Lookup(Path{"data", "rt"})
	require.True(t, ok)
	c.Reset()
	second, ok := c.Lookup(Path{"data", "rt"})
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestCache_NavigatesCachedValues(t *testing.T) {
	// A resolved value stored at a prefix is what deeper lookups walk.
	c := New(map[string]any{"data": "placeholder"})
	c.Set(Path{"data"}, map[string]any{"rt": 300})

	v, ok := c.Lookup(Path{"data", "rt"})
	require.True(t, ok)
	assert.Equal(t, 300, v)
}

func TestLookupChild_TypedContainers(t *testing.T) {
	type named map[string]any

	v, ok := LookupChild(named{"a": 1}, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = LookupChild([2]int{4, 5}, "1")
	require.True(t, ok)
	assert.Equal(t, 5, v)

	_, ok = LookupChild(map[int]string{1: "x"}, "1")
	assert.False(t, ok)

	_, ok = LookupChild(nil, "a")
	assert.False(t, ok)
}

func TestIsContainer(t *testing.T) {
	assert.True(t, IsContainer(map[string]any{}))
	assert.True(t, IsContainer([]int{}))
	assert.False(t, IsContainer("text"))
	assert.False(t, IsContainer(nil))
}
