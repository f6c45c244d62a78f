// Package lock guards a session against two daemons running at once.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Info is what the holder records in the lock file.
type Info struct {
	PID   int
	Since time.Time
}

// LockHeldError is returned when another process holds the session lock.
type LockHeldError struct {
	Info
	Path string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("session lock held by PID %d since %s (%s)",
		e.PID, e.Since.Local().Format(time.DateTime), e.Path)
}

// Lock is an acquired advisory lock. The flock dies with the process, so
// a crashed daemon never leaves the session locked.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		info := readInfo(f)
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, &LockHeldError{Info: info, Path: path}
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	if err := writeInfo(f, Info{PID: os.Getpid(), Since: time.Now().UTC()}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{file: f, path: path}, nil
}

// Inspect reports whether some process holds the lock at path and what it
// recorded. A missing file means nobody does.
func Inspect(path string) (Info, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	defer func() { _ = f.Close() }()

	err = unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB)
	switch {
	case err == nil:
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return Info{}, false, nil
	case errors.Is(err, unix.EWOULDBLOCK):
		return readInfo(f), true, nil
	default:
		return Info{}, false, fmt.Errorf("flock %s: %w", path, err)
	}
}

// Release clears the recorded holder and drops the lock. The file stays
// in place: unlinking it would let a second daemon lock a fresh inode
// while a third still waits on the old one. Safe on a nil receiver and
// more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeInfo(f *os.File, info Info) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	content := fmt.Sprintf("pid=%d\ntime=%s\n", info.PID, info.Since.Format(time.RFC3339))
	_, err := f.WriteAt([]byte(content), 0)
	return err
}

func readInfo(f *os.File) Info {
	buf := make([]byte, 256)
	n, _ := f.ReadAt(buf, 0)
	var info Info
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		key, val, _ := strings.Cut(line, "=")
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(val)
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, val)
		}
	}
	return info
}
