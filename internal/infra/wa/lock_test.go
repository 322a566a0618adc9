package wa

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	walog "go.mau.fi/whatsmeow/util/log"
)

func writeLock(t *testing.T, dir string, info lockInfo) {
	t.Helper()
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), data, 0o644))
}

func TestAcquireLockFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, acquireLock(dir, walog.Noop))

	info, err := readLock(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)

	releaseLock(dir)
	assert.NoFileExists(t, filepath.Join(dir, lockFileName))
}

func TestAcquireLockClearsStale(t *testing.T) {
	hostname, _ := os.Hostname()

	tests := []struct {
		name string
		info lockInfo
	}{
		{"other host", lockInfo{PID: os.Getppid(), Hostname: hostname + "-old", StartedAt: time.Now()}},
		{"this process", lockInfo{PID: os.Getpid(), Hostname: hostname}},
		{"dead pid", lockInfo{PID: 1 << 22, Hostname: hostname}},
		// The parent is alive but started long after this lock was written.
		{"reused pid", lockInfo{PID: os.Getppid(), Hostname: hostname, StartedAt: time.Unix(0, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLock(t, dir, tt.info)
			require.NoError(t, acquireLock(dir, walog.Noop))
		})
	}
}

func TestAcquireLockGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("SingletonLock"), 0o644))
	assert.NoError(t, acquireLock(dir, walog.Noop))
}

func TestAcquireLockHeldByLiveProcess(t *testing.T) {
	hostname, err := os.Hostname()
	require.NoError(t, err)

	dir := t.TempDir()
	writeLock(t, dir, lockInfo{PID: os.Getppid(), Hostname: hostname, StartedAt: time.Now()})

	err = acquireLock(dir, walog.Noop)
	assert.ErrorIs(t, err, ErrSessionLocked)
	assert.FileExists(t, filepath.Join(dir, lockFileName))
}

func TestAcquireLockWithoutStartTime(t *testing.T) {
	hostname, err := os.Hostname()
	require.NoError(t, err)

	dir := t.TempDir()
	writeLock(t, dir, lockInfo{PID: os.Getppid(), Hostname: hostname})

	assert.ErrorIs(t, acquireLock(dir, walog.Noop), ErrSessionLocked)
}
