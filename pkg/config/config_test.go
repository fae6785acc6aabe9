package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

const (
	testContract = "0x00000000000000000000000000000000000000c0"
	testOwner    = "0x0000000000000000000000000000000000000001"
)

func withAddrs(args ...string) []string {
	return append([]string{"-contractAddr", testContract, "-ownerAddr", testOwner}, args...)
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(newFlagSet(), withAddrs())
	require.NoError(t, err)

	require.Equal(t, StorageMemory, c.Storage)
	require.Equal(t, ":8000", c.ListenAddr)
	require.Equal(t, 0, c.PurchasesLimit)
	require.Equal(t, time.Hour, c.PurchasesWindow)
	require.Equal(t, uint64(1), c.SeedTokenID)
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("STORAGE", StoragePostgres)
	t.Setenv("PURCHASES_LIMIT", "5")
	t.Setenv("PURCHASES_WINDOW", "30m")
	t.Setenv("CACHE_ROYALTIES", "true")
	t.Setenv("ATTEMPTS_BATCH_SIZE", "not a number")

	owner := "0x00000000000000000000000000000000000000a1"
	t.Setenv("CONTRACT_ADDR", testContract)
	c, err := Load(newFlagSet(), []string{"-ownerAddr", owner, "-purchasesLimit", "7"})
	require.NoError(t, err)

	require.Equal(t, StoragePostgres, c.Storage)
	require.Equal(t, 7, c.PurchasesLimit)
	require.Equal(t, 30*time.Minute, c.PurchasesWindow)
	require.True(t, c.CacheRoyalties)
	require.Equal(t, 500, c.AttemptsBatchSize)
	require.Equal(t, common.HexToAddress(owner), c.Owner())
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(newFlagSet(), withAddrs("-storage", "mongo"))
	require.ErrorContains(t, err, "unknown storage")

	_, err = Load(newFlagSet(), []string{"-contractAddr", "0x123", "-ownerAddr", testOwner})
	require.ErrorContains(t, err, "contractAddr")

	_, err = Load(newFlagSet(), withAddrs("-purchasesLimit", "1", "-purchasesWindow", "0s"))
	require.ErrorContains(t, err, "purchasesWindow")

	_, err = Load(newFlagSet(), []string{"-unknownFlag"})
	require.Error(t, err)
}

func TestLoadRequiresAddresses(t *testing.T) {
	_, err := Load(newFlagSet(), nil)
	require.ErrorContains(t, err, "is required")

	_, err = Load(newFlagSet(), []string{"-contractAddr", testContract})
	require.ErrorContains(t, err, "ownerAddr is required")

	_, err = Load(newFlagSet(), []string{"-ownerAddr", testOwner})
	require.ErrorContains(t, err, "contractAddr is required")

	_, err = Load(newFlagSet(), []string{"-contractAddr", "0x0000000000000000000000000000000000000000", "-ownerAddr", testOwner})
	require.ErrorContains(t, err, "zero address")
}

func TestLoadAttemptsSettings(t *testing.T) {
	_, err := Load(newFlagSet(), withAddrs("-storage", StoragePostgres, "-attemptsFlushInterval", "0s"))
	require.ErrorContains(t, err, "attemptsFlushInterval")

	_, err = Load(newFlagSet(), withAddrs("-storage", StoragePostgres, "-attemptsBatchSize", "0"))
	require.ErrorContains(t, err, "attemptsBatchSize")

	// attempts are only logged with postgres storage
	_, err = Load(newFlagSet(), withAddrs("-attemptsFlushInterval", "0s"))
	require.NoError(t, err)
}
