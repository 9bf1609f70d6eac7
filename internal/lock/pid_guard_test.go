package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDGuard_Check_NoFile(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))
	assert.NoError(t, guard.Check())
}

func TestPIDGuard_Check_StaleProcess(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))

	// A PID this high is not running.
	require.NoError(t, os.WriteFile(guard.Path(), []byte("999999"), 0644))

	assert.NoError(t, guard.Check())
	_, err := os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")
}

func TestPIDGuard_Check_InvalidPID(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, os.WriteFile(guard.Path(), []byte("not-a-number"), 0644))

	assert.NoError(t, guard.Check())
	_, err := os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err), "invalid PID file should be removed")
}

func TestPIDGuard_Check_LiveProcess(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))

	// The parent process is alive for the whole test run.
	ppid := os.Getppid()
	require.NoError(t, os.WriteFile(guard.Path(), []byte(strconv.Itoa(ppid)), 0644))

	err := guard.Check()
	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running), "got %v", err)
	assert.Equal(t, ppid, running.PID)
	assert.Equal(t, guard.Path(), running.Path)

	assert.Error(t, guard.Acquire())
}

func TestPIDGuard_AcquireRelease(t *testing.T) {
	store := filepath.Join(t.TempDir(), "nested", "tasks.db")
	guard := NewPIDGuard(store)

	require.NoError(t, guard.Acquire())
	data, err := os.ReadFile(store + PIDSuffix)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// Our own PID does not block a re-acquire after a crash-restart in the
	// same process.
	assert.NoError(t, guard.Check())
	require.NoError(t, guard.Acquire())

	guard.Release()
	_, err = os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err), "PID file should be removed after release")
}

func TestPIDGuard_ReleaseLeavesOtherOwner(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, os.WriteFile(guard.Path(), []byte(strconv.Itoa(os.Getppid())), 0644))

	guard.Release()
	_, err := os.Stat(guard.Path())
	assert.NoError(t, err, "a guard never removes another process's PID file")
}

func TestPIDGuard_Release_Idempotent(t *testing.T) {
	guard := NewPIDGuard(filepath.Join(t.TempDir(), "tasks.json"))
	guard.Release()
	guard.Release()
}

func TestPIDGuard_SeparateStores(t *testing.T) {
	dir := t.TempDir()
	a := NewPIDGuard(filepath.Join(dir, "hr.json"))
	b := NewPIDGuard(filepath.Join(dir, "finance.json"))

	require.NoError(t, a.Acquire())
	defer a.Release()
	require.NoError(t, b.Acquire())
	defer b.Release()
}

func TestAlreadyRunningError(t *testing.T) {
	err := &AlreadyRunningError{PID: 12345, Path: "/srv/tasks.json.pid"}
	assert.Equal(t, "store already in use by pid 12345 (/srv/tasks.json.pid)", err.Error())

	err = &AlreadyRunningError{Path: "x.pid"}
	assert.Equal(t, "store already in use (x.pid)", err.Error())
}
