package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("pw")

	r, err := Connect(mr.Addr(), "pw", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = Connect(mr.Addr(), "wrong", 0)
	assert.Error(t, err)
}
