package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_table(t *testing.T) {
	r := newRig(t, testConfig())
	k := r.k

	t1 := k.Dispatch(SysTaskNew, [4]uint32{0x08001001, 10})
	t2 := k.Dispatch(SysTaskNew, [4]uint32{0x08001101, 10})
	assert.Equal(t, int32(1), t1)
	assert.Equal(t, int32(2), t2)

	assert.Equal(t, int32(-1), k.Dispatch(SysTaskID, [4]uint32{}), "not started")
	assert.Equal(t, int32(0), k.Dispatch(SysOSStart, [4]uint32{}))
	assert.Equal(t, t1, k.Dispatch(SysTaskID, [4]uint32{}))

	sem := k.Dispatch(SysSemNew, [4]uint32{0})
	assert.Equal(t, int32(1), sem)

	count, err := k.Syscall(SysSemP, [4]uint32{uint32(sem)})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), count, "a legitimate -1")
	assert.Equal(t, t2, k.Dispatch(SysTaskID, [4]uint32{}))

	assert.Equal(t, int32(0), k.Dispatch(SysSemV, [4]uint32{uint32(sem)}))
	assert.Equal(t, t1, k.Dispatch(SysTaskID, [4]uint32{}))

	assert.Equal(t, int32(0), k.Dispatch(SysTaskWait, [4]uint32{5}))
	assert.Equal(t, t2, k.Dispatch(SysTaskID, [4]uint32{}))

	assert.Equal(t, int32(-1), k.Dispatch(SysTaskYield, [4]uint32{}))
	assert.Equal(t, int32(0), k.Dispatch(SysSemDestroy, [4]uint32{uint32(sem)}))
	assert.Equal(t, int32(-1), k.Dispatch(SysSemP, [4]uint32{uint32(sem)}))

	r.quanta(1)
	assert.Equal(t, int32(0), k.Dispatch(SysTaskKill, [4]uint32{}))
	checkInvariants(t, k)
}

func TestSyscall_errors(t *testing.T) {
	r := newRig(t, testConfig())

	_, err := r.k.Syscall(Syscall(1), [4]uint32{})
	require.ErrorIs(t, err, ErrUnknownSyscall)
	_, err = r.k.Syscall(SysTaskYield, [4]uint32{})
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = r.k.Syscall(SysTaskNew, [4]uint32{0, 64})
	require.ErrorIs(t, err, ErrInvalidHandle)

	assert.Equal(t, "sem_p", SysSemP.String())
	assert.Equal(t, "syscall(99)", Syscall(99).String())
}
