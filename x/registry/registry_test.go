package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deployments.yaml")

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)

	factoryAddr := common.HexToAddress("0x1000000000000000000000000000000000000001")
	rec, err := s.Register("factory", "base-sepolia", "factory", factoryAddr, map[string]string{
		"fee_bps":   "1000",
		"publisher": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, factoryAddr.Hex(), rec.Address)

	// Reopen from disk and confirm the record survived.
	s2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)

	got, err := s2.ByName("factory", "base-sepolia")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, "1000", got.ConstructorArgs["fee_bps"])
}

func TestRegistryDuplicateName(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "deployments.yaml"), zerolog.Nop())
	require.NoError(t, err)

	addr := common.HexToAddress("0x2000000000000000000000000000000000000002")
	_, err = s.Register("router", "base-sepolia", "router", addr, nil)
	require.NoError(t, err)

	_, err = s.Register("router", "base-sepolia", "router", addr, nil)
	require.ErrorIs(t, err, ErrNameTaken)

	// Same name on a different network is a distinct deployment.
	_, err = s.Register("router", "base-mainnet", "router", addr, nil)
	require.NoError(t, err)
}

func TestRegistryListOrdering(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "deployments.yaml"), zerolog.Nop())
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s.SetNow(func() time.Time { return clock })

	names := []string{"factory", "router", "vault-a"}
	for _, name := range names {
		_, err := s.Register(name, "local", "component", common.HexToAddress("0x3000000000000000000000000000000000000003"), nil)
		require.NoError(t, err)
		clock = clock.Add(time.Hour)
	}

	list := s.List()
	require.Len(t, list, 3)
	for i, name := range names {
		require.Equal(t, name, list[i].Name)
	}
}

func TestRegistryRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deployments.yaml")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)

	rec, err := s.Register("factory", "local", "factory", common.HexToAddress("0x4000000000000000000000000000000000000004"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Remove(rec.ID))
	require.ErrorIs(t, s.Remove(rec.ID), ErrRecordNotFound)

	_, err = s.ByName("factory", "local")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRegistryOpenErrors(t *testing.T) {
	t.Parallel()

	_, err := Open("", zerolog.Nop())
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deployments: {not: a list}"), 0o644))
	_, err = Open(path, zerolog.Nop())
	require.Error(t, err)
}
