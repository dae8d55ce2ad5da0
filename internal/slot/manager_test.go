package slot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerStartsUninitialized(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())
	assert.Equal(t, int64(InitEpoch), m.Epoch())
}

func TestManagerMonotonicApply(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())

	require.True(t, m.UpdateSlotTable(testTable(5)))
	assert.Equal(t, int64(5), m.Epoch())

	// stale and duplicate epochs are silent no-ops
	assert.False(t, m.UpdateSlotTable(testTable(3)))
	assert.False(t, m.UpdateSlotTable(testTable(5)))
	assert.Equal(t, int64(5), m.Epoch())

	require.True(t, m.UpdateSlotTable(testTable(7)))
	assert.Equal(t, int64(7), m.Epoch())
}

func TestManagerConvergesToMaxEpochRegardlessOfOrder(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())

	m.UpdateSlotTable(testTable(2))
	m.UpdateSlotTable(testTable(9))
	m.UpdateSlotTable(testTable(4))
	m.UpdateSlotTable(testTable(1))

	assert.Equal(t, int64(9), m.Epoch())
}

func TestManagerEpochAndStatusesPairing(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())
	m.UpdateSlotTable(testTable(5))

	epoch, statuses := m.EpochAndStatuses()
	assert.Equal(t, int64(5), epoch)
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, epoch, st.LeaderEpoch, "statuses must come from the same snapshot as the epoch")
	}
}

func TestManagerTableReturnsCopy(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())
	m.UpdateSlotTable(testTable(5))

	got := m.Table()
	got.Slots[0] = Slot{ID: 0, Leader: "mutated"}

	assert.Equal(t, "10.0.0.1", m.Table().Slots[0].Leader)
}

func TestManagerConcurrentReadersAndWriters(t *testing.T) {
	m := NewManager("10.0.0.1", zap.NewNop())

	var wg sync.WaitGroup
	for e := int64(1); e <= 50; e++ {
		wg.Add(1)
		go func(epoch int64) {
			defer wg.Done()
			m.UpdateSlotTable(testTable(epoch))
		}(e)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			epoch, statuses := m.EpochAndStatuses()
			for _, st := range statuses {
				// a torn read would pair an epoch with foreign statuses
				assert.Equal(t, epoch, st.LeaderEpoch)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Epoch())
}
