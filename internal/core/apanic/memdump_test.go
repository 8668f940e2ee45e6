package apanic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/apanic-go/internal/core/record"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/storage/blockdev/blockdevtest"
	"github.com/yndnr/apanic-go/internal/storage/memsource"
)

func snapshotBanks() memsource.Static {
	return memsource.Static{
		{Name: "sram", Data: pattern(64)},
		{Name: "sdram", Data: pattern(10000)},
	}
}

func TestSnapshot_Committed(t *testing.T) {
	wd := &watchdogCounter{}
	rig := newTestRig(t, WithMemorySource(snapshotBanks()), WithWatchdog(wd))
	rig.engine.PartitionAdded(blockdev.NewMemory("kpanic", testPartitionSize))
	snap := blockdev.NewMemory("memdump", testPartitionSize)
	rig.engine.SnapshotListener().PartitionAdded(snap)

	_, ok := rig.engine.Trigger()
	require.True(t, ok)

	h, err := rig.engine.SnapshotHeader()
	require.NoError(t, err)
	assert.Equal(t, uint32(record.SnapshotPayloadOffset), h.SDRAMOffset)
	assert.Equal(t, uint32(10000), h.SDRAMLength)
	assert.Zero(t, h.SRAMOffset)
	assert.Zero(t, h.SRAMLength)

	raw := snap.Bytes()
	assert.Equal(t, pattern(10000), raw[record.PageSize:record.PageSize+10000])
	assert.Equal(t, 1, wd.disabled)

	rep := rig.engine.LastSnapshot()
	assert.Equal(t, SnapshotWritten, rep.Result)
	assert.Equal(t, "sdram", rep.Bank)
	assert.Equal(t, []string{SnapshotWritten}, rig.observer.snapshots)
}

func TestSnapshot_PayloadFailureLeavesNoHeader(t *testing.T) {
	rig := newTestRig(t, WithMemorySource(snapshotBanks()))
	mem := blockdev.NewMemory("memdump", testPartitionSize)

	// A stale snapshot from an earlier crash must not survive a failed one.
	stale := make([]byte, record.SnapshotHeaderSize)
	record.NewSnapshotHeader(rig.engine.now(), record.PageSize, 16).Encode(stale)
	_, err := mem.WriteAt(stale, 0)
	require.NoError(t, err)

	rig.engine.SnapshotListener().PartitionAdded(blockdevtest.Wrap(mem).FailWritesAt(record.SnapshotPayloadOffset))

	_, ok := rig.engine.Trigger()
	require.True(t, ok)

	_, err = rig.engine.SnapshotHeader()
	assert.ErrorIs(t, err, record.ErrBadMagic)
	assert.Equal(t, make([]byte, record.PageSize), mem.Bytes()[:record.PageSize])
	assert.Equal(t, SnapshotFailed, rig.engine.LastSnapshot().Result)
}

func TestSnapshot_BankLargerThanPartition(t *testing.T) {
	rig := newTestRig(t, WithMemorySource(memsource.Static{{Name: "sdram", Data: pattern(8192)}}))
	rig.engine.SnapshotListener().PartitionAdded(blockdev.NewMemory("memdump", 8192))

	rig.engine.Notify(EventPanic)

	_, err := rig.engine.SnapshotHeader()
	assert.ErrorIs(t, err, record.ErrBadMagic)
	assert.Equal(t, "payload write failed", rig.engine.LastSnapshot().Reason)
}

func TestSnapshot_DeviceAbsent(t *testing.T) {
	rig := newTestRig(t, WithMemorySource(snapshotBanks()))
	part := blockdevtest.Wrap(blockdev.NewMemory("memdump", testPartitionSize))
	part.ProbeErr = blockdev.ErrNotPresent
	rig.engine.SnapshotListener().PartitionAdded(part)

	rig.engine.Notify(EventPanic)
	assert.Zero(t, part.Writes())
	assert.Equal(t, SnapshotAbsent, rig.engine.LastSnapshot().Result)
}

func TestSnapshot_Unbound(t *testing.T) {
	rig := newTestRig(t, WithMemorySource(snapshotBanks()))
	rig.engine.Notify(EventPanic)
	assert.Empty(t, rig.observer.snapshots)

	_, err := rig.engine.SnapshotHeader()
	assert.ErrorIs(t, err, ErrUnbound)
}

func TestSnapshotBinder_Remove(t *testing.T) {
	rig := newTestRig(t)
	b := rig.engine.SnapshotListener()
	snap := blockdev.NewMemory("memdump", testPartitionSize)
	b.PartitionAdded(snap)

	_, s := rig.engine.Bound()
	assert.Equal(t, "memdump", s)

	b.PartitionRemoved(blockdev.NewMemory("memdump", 1))
	_, s = rig.engine.Bound()
	assert.Equal(t, "memdump", s)

	b.PartitionRemoved(snap)
	_, s = rig.engine.Bound()
	assert.Empty(t, s)
	assert.False(t, rig.observer.bound[RoleSnapshot])
}
