package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/struggle121224/sofa-registry/internal/clientmanager"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mck := clock.NewMock()
	mck.Set(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.SetClock(mck)
	return s, mck
}

func off(ips ...string) []clientmanager.AddressVersion {
	out := make([]clientmanager.AddressVersion, 0, len(ips))
	for _, ip := range ips {
		out = append(out, clientmanager.NewAddressVersion(ip, false))
	}
	return out
}

func TestQueryOnEmptyStoreHasZeroVersion(t *testing.T) {
	s, _ := newTestStore(t)

	data, err := s.QueryClientOffData(context.Background())
	require.NoError(t, err)
	assert.Zero(t, data.Version)
	assert.Empty(t, data.ClientOffAddress)
}

func TestOffOpenRoundtrip(t *testing.T) {
	s, mck := newTestStore(t)
	ctx := context.Background()

	ok, err := s.ClientOff(ctx, off("10.0.0.1", "10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.QueryClientOffData(ctx)
	require.NoError(t, err)
	assert.NotZero(t, data.Version)
	assert.Len(t, data.ClientOffAddress, 2)

	mck.Add(time.Second)
	_, err = s.ClientOpen(ctx, []clientmanager.AddressVersion{clientmanager.NewAddressVersion("10.0.0.1", true)})
	require.NoError(t, err)

	data, err = s.QueryClientOffData(ctx)
	require.NoError(t, err)
	assert.Len(t, data.ClientOffAddress, 1)
	assert.Contains(t, data.ClientOffAddress, "10.0.0.2")
}

func TestVersionsStrictlyIncrease(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// same mock instant for both writes: the stamp must still advance
	_, err := s.ClientOff(ctx, off("10.0.0.1"))
	require.NoError(t, err)
	data1, _ := s.QueryClientOffData(ctx)

	_, err = s.ClientOff(ctx, off("10.0.0.1"))
	require.NoError(t, err)
	data2, _ := s.QueryClientOffData(ctx)

	assert.Greater(t, data2.ClientOffAddress["10.0.0.1"].Version,
		data1.ClientOffAddress["10.0.0.1"].Version)
}

func TestStaleVersionedWriteAbsorbed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClientOff(ctx, off("10.0.0.1"))
	require.NoError(t, err)
	data, _ := s.QueryClientOffData(ctx)
	current := data.ClientOffAddress["10.0.0.1"].Version

	_, err = s.ClientOff(ctx, []clientmanager.AddressVersion{{Address: "10.0.0.1", Version: current - 5}})
	require.NoError(t, err)

	data, _ = s.QueryClientOffData(ctx)
	assert.Equal(t, current, data.ClientOffAddress["10.0.0.1"].Version)
}

func TestGetExpireAddressRespectsCutoffAndLimit(t *testing.T) {
	s, mck := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClientOff(ctx, off("10.0.0.1"))
	require.NoError(t, err)
	mck.Add(time.Hour)
	_, err = s.ClientOff(ctx, off("10.0.0.2"))
	require.NoError(t, err)
	mck.Add(time.Hour)
	_, err = s.ClientOff(ctx, off("10.0.0.3"))
	require.NoError(t, err)

	cutoff := mck.Now().Add(-30 * time.Minute)

	got, err := s.GetExpireAddress(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got, "oldest first")

	got, err = s.GetExpireAddress(ctx, cutoff, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1"}, got)
}

func TestCleanExpiredSkipsReopenedAndMissing(t *testing.T) {
	s, mck := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClientOff(ctx, off("10.0.0.1", "10.0.0.2"))
	require.NoError(t, err)
	mck.Add(time.Second)
	_, err = s.ClientOpen(ctx, []clientmanager.AddressVersion{clientmanager.NewAddressVersion("10.0.0.2", true)})
	require.NoError(t, err)

	count, err := s.CleanExpired(ctx, []string{"10.0.0.1", "10.0.0.2", "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	data, _ := s.QueryClientOffData(ctx)
	assert.Empty(t, data.ClientOffAddress)
}

func TestGetClientOffSizeBefore(t *testing.T) {
	s, mck := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClientOff(ctx, off("10.0.0.1", "10.0.0.2"))
	require.NoError(t, err)
	mck.Add(time.Hour)
	_, err = s.ClientOff(ctx, off("10.0.0.3"))
	require.NoError(t, err)

	n, err := s.GetClientOffSizeBefore(ctx, mck.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReduceRemovesRecords(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.ClientOff(ctx, off("10.0.0.1", "10.0.0.2"))
	require.NoError(t, err)

	ok, err := s.Reduce(ctx, off("10.0.0.1"))
	require.NoError(t, err)
	assert.True(t, ok)

	data, _ := s.QueryClientOffData(ctx)
	assert.NotContains(t, data.ClientOffAddress, "10.0.0.1")
	assert.Contains(t, data.ClientOffAddress, "10.0.0.2")
}

func TestWaitSynced(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.WaitSynced(context.Background()))
}
