package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tgstate/internal/domain"
)

func readRaw(t *testing.T, dir, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return b
}

func writeRaw(t *testing.T, dir, name string, b []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o600))
}

func keyOf(seed byte) domain.SecretKey {
	var k domain.SecretKey
	for i := range k {
		k[i] = seed + byte(i)
	}
	return k
}

func authKeyOf(seed byte) domain.AuthKey {
	var k domain.AuthKey
	for i := range k {
		k[i] = seed ^ byte(i)
	}
	return k
}

type countingObserver struct {
	writes map[string]int
}

func (c *countingObserver) StoreWritten(store string, _ int) {
	if c.writes == nil {
		c.writes = make(map[string]int)
	}
	c.writes[store]++
}
