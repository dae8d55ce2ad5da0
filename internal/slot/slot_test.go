package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(epoch int64) Table {
	return Table{
		Epoch: epoch,
		Slots: map[int]Slot{
			0: {ID: 0, Leader: "10.0.0.1", LeaderEpoch: epoch, Followers: []string{"10.0.0.2"}},
			1: {ID: 1, Leader: "10.0.0.2", LeaderEpoch: epoch, Followers: []string{"10.0.0.1"}},
			2: {ID: 2, Leader: "10.0.0.3", LeaderEpoch: epoch, Followers: []string{"10.0.0.4"}},
		},
	}
}

func TestTableCopyIsDeep(t *testing.T) {
	orig := testTable(5)
	cp := orig.Copy()

	cp.Slots[0] = Slot{ID: 0, Leader: "10.9.9.9"}
	cp.Slots[1].Followers[0] = "mutated"

	assert.Equal(t, "10.0.0.1", orig.Slots[0].Leader)
	assert.Equal(t, "10.0.0.1", orig.Slots[1].Followers[0])
}

func TestInitTableSentinel(t *testing.T) {
	init := InitTable()
	assert.Equal(t, int64(InitEpoch), init.Epoch)
	assert.Empty(t, init.Slots)
}

func TestStatusesFor(t *testing.T) {
	table := testTable(7)

	statuses := table.StatusesFor("10.0.0.1")
	require.Len(t, statuses, 2)

	assert.Equal(t, 0, statuses[0].SlotID)
	assert.Equal(t, RoleLeader, statuses[0].Role)
	assert.Equal(t, int64(7), statuses[0].LeaderEpoch)

	assert.Equal(t, 1, statuses[1].SlotID)
	assert.Equal(t, RoleFollower, statuses[1].Role)
}

func TestStatusesForUninvolvedNode(t *testing.T) {
	statuses := testTable(7).StatusesFor("10.99.99.99")
	assert.Empty(t, statuses)
}
