package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryCompilesAllDocuments(t *testing.T) {
	r := NewRegistry()
	ids := r.IDs()
	require.Len(t, ids, 3)
	for _, id := range ids {
		cs, ok := r.Get(id)
		require.True(t, ok)
		require.NotEmpty(t, cs.Rules)
	}
}

func TestGetUnknownReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("does-not-exist")
	require.False(t, ok)
}
