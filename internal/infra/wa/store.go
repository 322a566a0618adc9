package wa

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Credential artifacts live in one directory per user:
//
//	<root>/session-<userID>/store.db   whatsmeow device store (+ -wal, -shm)
//	<root>/session-<userID>/session.lock
const (
	sessionDirPrefix = "session-"
	storeFileName    = "store.db"
	lockFileName     = "session.lock"
)

var sessionKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func normalizeSession(session string) (string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return "", fmt.Errorf("session is required")
	}
	if !sessionKeyRe.MatchString(session) {
		return "", fmt.Errorf("invalid session: use letters, numbers, dash, underscore")
	}
	return session, nil
}

func sessionDir(root, session string) string {
	return filepath.Join(root, sessionDirPrefix+session)
}

// StorePath is the credential store inside a user's directory. Its presence
// is what makes a user restorable.
func StorePath(dir string) string {
	return filepath.Join(dir, storeFileName)
}

// listSessionsFromDisk returns the user ids that have a credential store
// under root, sorted.
func listSessionsFromDisk(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, sessionDirPrefix) {
			continue
		}

		id := strings.TrimPrefix(name, sessionDirPrefix)
		if id == "" || !sessionKeyRe.MatchString(id) {
			continue
		}

		if _, err := os.Stat(StorePath(filepath.Join(root, name))); err != nil {
			continue
		}

		out = append(out, id)
	}

	sort.Strings(out)
	return out, nil
}

func hasArtifacts(dir string) bool {
	_, err := os.Stat(dir)
	return err == nil
}

// removeSessionDir deletes a user's credential directory. sqlite may hold
// the files for a moment after the connection closed, so removal is retried.
func removeSessionDir(dir string) error {
	op := func() error {
		err := os.RemoveAll(dir)
		if err == nil {
			return nil
		}
		if errors.Is(err, os.ErrPermission) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 10)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}
