package geoip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopLookup(t *testing.T) {
	require.Nil(t, noop{}.Lookup("8.8.8.8"))
}

func TestNilReaderLookup(t *testing.T) {
	var r *Reader
	require.Nil(t, r.Lookup("8.8.8.8"))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(t.TempDir() + "/missing.mmdb")
	require.Error(t, err)
}
