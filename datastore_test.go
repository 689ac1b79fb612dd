package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialBlockRegisters(t *testing.T) {
	block := NewSequentialRegisterBlock(10, 4)

	require.NoError(t, block.SetRegisters(10, []uint16{1, 2, 3, 4}))
	got, err := block.GetRegisters(11, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2, 3}, got)

	assert.True(t, block.Validate(10, 4))
	assert.False(t, block.Validate(10, 5))
	assert.False(t, block.Validate(9, 1))

	_, err = block.GetRegisters(20, 1)
	assert.Error(t, err)
}

func TestSparseBlockRejectsUnknownAddresses(t *testing.T) {
	block := NewSparseRegisterBlock(map[int]uint16{5: 0xAAAA, 6: 0xBBBB})

	assert.True(t, block.Validate(5, 2))
	assert.False(t, block.Validate(5, 3), "address 7 was never seeded")

	got, err := block.GetRegisters(5, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xAAAA, 0xBBBB}, got)

	_, err = block.GetRegisters(7, 1)
	assert.Error(t, err, "reading an address outside the seeded domain must fail")

	err = block.SetRegisters(7, []uint16{0x1111})
	assert.Error(t, err, "writing a new key is rejected unless Mutable is set")

	err = block.SetRegisters(5, []uint16{0xCCCC})
	assert.NoError(t, err, "writing an already-present key always succeeds")
}

func TestSparseBlockMutableAllowsGrowth(t *testing.T) {
	block := NewSparseRegisterBlock(nil)
	block.Mutable = true

	require.NoError(t, block.SetRegisters(100, []uint16{0x42}))
	got, err := block.GetRegisters(100, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x42}, got)
}

func TestSlaveContextZeroModeAddressTranslation(t *testing.T) {
	ctx := NewSlaveContext(16)
	require.NoError(t, ctx.HoldingRegisters.SetRegisters(0, []uint16{0, 0xABCD}))

	// ZeroMode=false (default): wire address 0 maps to block offset 1.
	got, err := ctx.HoldingRegisters.GetRegisters(ctx.translateAddress(0), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xABCD}, got)

	ctx.ZeroMode = true
	got, err = ctx.HoldingRegisters.GetRegisters(ctx.translateAddress(0), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0}, got)
}

func TestSlaveContextFileRecords(t *testing.T) {
	ctx := NewSlaveContext(1)

	_, err := ctx.ReadFileRecord(1, 0)
	assert.Error(t, err, "unwritten records must be unreadable")

	ctx.WriteFileRecord(1, 0, []uint16{1, 2, 3})
	got, err := ctx.ReadFileRecord(1, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3}, got)
}
