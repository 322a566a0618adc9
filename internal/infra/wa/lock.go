package wa

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	walog "go.mau.fi/whatsmeow/util/log"
)

// ErrSessionLocked means another live process owns the credential store.
var ErrSessionLocked = errors.New("credential store is locked by another process")

type lockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

func readLock(path string) (*lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Process start times are derived from boot time and clock ticks, so they
// can drift a little from the wall clock that stamped the lock.
const startTimeSlack = 2 * time.Second

// lockIsStale reports whether a lock can no longer belong to a running
// owner: it was written on another host (a container restart changes the
// hostname), by this very process in an earlier connection, or by a pid
// that is gone or has since been reused by a younger process.
func lockIsStale(info *lockInfo, hostname string) bool {
	if info.Hostname != hostname {
		return true
	}
	if info.PID == os.Getpid() {
		return true
	}
	alive, err := process.PidExists(int32(info.PID))
	if err != nil || !alive {
		return true
	}
	return pidReused(info)
}

// pidReused reports whether the process now holding info.PID started after
// the lock was written. Locks without a start time cannot be checked.
func pidReused(info *lockInfo) bool {
	if info.StartedAt.IsZero() {
		return false
	}
	p, err := process.NewProcess(int32(info.PID))
	if err != nil {
		return true
	}
	created, err := p.CreateTime()
	if err != nil {
		return false
	}
	return time.UnixMilli(created).After(info.StartedAt.Add(startTimeSlack))
}

// clearStaleLock removes a lock left behind by an unclean shutdown.
func clearStaleLock(dir string, log walog.Logger) error {
	path := filepath.Join(dir, lockFileName)

	info, err := readLock(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		log.Warnf("unreadable lock %s, removing: %v", path, err)
		return removeLockFile(path)
	}

	hostname, _ := os.Hostname()
	if !lockIsStale(info, hostname) {
		return fmt.Errorf("%w: pid %d on %s", ErrSessionLocked, info.PID, info.Hostname)
	}

	log.Warnf("removing stale lock of pid %d on %s", info.PID, info.Hostname)
	return removeLockFile(path)
}

// acquireLock clears a stale lock if there is one and records this process
// as the owner of dir.
func acquireLock(dir string, log walog.Logger) error {
	if err := clearStaleLock(dir, log); err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	data, err := json.Marshal(lockInfo{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrSessionLocked
		}
		return fmt.Errorf("create lock: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

func releaseLock(dir string) {
	_ = removeLockFile(filepath.Join(dir, lockFileName))
}

func removeLockFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}
