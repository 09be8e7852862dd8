package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	r := NewStatic(map[string][]string{
		"llama3.3:70b":    {"https://a.example:21434", "https://b.example:21434"},
		"deepseek-r1:70b": {"https://a.example:21434"},
	})

	models, err := r.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek-r1:70b", "llama3.3:70b"}, models)

	urls, err := r.URLs(ctx, "llama3.3:70b")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example:21434", "https://b.example:21434"}, urls)

	all, err := r.URLs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example:21434", "https://b.example:21434"}, all)

	none, err := r.URLs(ctx, "gemma")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStatic_ZeroValueAndAdd(t *testing.T) {
	var r Static
	models, err := r.Models(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)

	r.Add("m", "u1")
	r.Add("m", "u2")
	urls, _ := r.URLs(context.Background(), "m")
	assert.Equal(t, []string{"u1", "u2"}, urls)

	urls[0] = "mutated"
	again, _ := r.URLs(context.Background(), "m")
	assert.Equal(t, "u1", again[0])
}
