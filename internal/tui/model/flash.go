package model

import (
	"sync"
	"time"
)

// FlashLevel tells the status bar how to color a flash.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashError
)

// Flash holds one transient notification. A newer message replaces the
// current one even before it expires.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   FlashLevel
	expires time.Time
	now     func() time.Time
}

func (f *Flash) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Set stores an informational message that expires after d.
func (f *Flash) Set(msg string, d time.Duration) { f.set(msg, FlashInfo, d) }

// Error stores an error message that expires after d.
func (f *Flash) Error(msg string, d time.Duration) { f.set(msg, FlashError, d) }

func (f *Flash) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = f.clock().Add(d)
}

// Get returns the current message, or empty if expired.
func (f *Flash) Get() string {
	msg, _ := f.Current()
	return msg
}

// Current returns the live message and its level.
func (f *Flash) Current() (string, FlashLevel) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.clock().Before(f.expires) {
		return "", FlashInfo
	}
	return f.message, f.level
}
