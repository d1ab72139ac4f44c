package storage

import (
	"context"
	"strings"
	"testing"

	"creator-ledger/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestProvideObjectStoreWithoutEndpoint(t *testing.T) {
	store, err := ProvideObjectStore(&config.Config{})
	require.NoError(t, err)

	err = store.Put(context.Background(), "fraud-evidence/c1/f1/receipt.pdf", strings.NewReader("x"), 1, "application/pdf")
	require.ErrorIs(t, err, ErrNotConfigured)
}
