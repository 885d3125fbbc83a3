// Package tailer reads newly appended lines of a growing combat log.
//
// Handle (poll.go) is the engine's reader: the caller polls it on its own
// cadence and gets exact byte accounting and rotation signals. Follower wraps
// nxadm/tail for streaming consumers that want lines as soon as they land.
package tailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/nxadm/tail"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// followerErrBuffer is the buffer size for the error channel.
// A small buffer prevents error loss during brief moments when the consumer
// is busy processing lines.
const followerErrBuffer = 16

// Follower streams lines from a log file as they are written.
type Follower struct {
	t      *tail.Tail
	ctx    context.Context
	cancel context.CancelFunc
	lines  chan event.RawLine
	errors chan error
	doneCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

// FollowConfig holds configuration for following.
type FollowConfig struct {
	// Follow continues reading as the file grows (tail -f).
	// When false the follower stops at end of file.
	Follow bool

	// ReOpen reopens the file when it's truncated or recreated (tail -F).
	ReOpen bool

	// Poll uses polling instead of inotify (more compatible but less efficient).
	Poll bool

	// MustExist requires the file to exist before starting (false = wait for creation).
	MustExist bool

	// FromStart reads from the beginning of the file instead of the end.
	FromStart bool
}

// DefaultFollowConfig returns the default configuration for combat logs.
func DefaultFollowConfig() FollowConfig {
	return FollowConfig{
		Follow:    true,
		ReOpen:    true,
		Poll:      false,
		MustExist: true,
		FromStart: false,
	}
}

// Follow starts streaming path. The provided context controls the
// follower's lifecycle.
func Follow(ctx context.Context, path string, cfg FollowConfig) (*Follower, error) {
	location := &tail.SeekInfo{Offset: 0, Whence: 2} // End of file
	if cfg.FromStart {
		location = &tail.SeekInfo{Offset: 0, Whence: 0}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    cfg.Follow,
		ReOpen:    cfg.ReOpen,
		Poll:      cfg.Poll,
		MustExist: cfg.MustExist,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening tail: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	f := &Follower{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
		lines:  make(chan event.RawLine),
		errors: make(chan error, followerErrBuffer),
		doneCh: make(chan struct{}),
	}

	go f.run()

	return f, nil
}

// Lines returns a channel that receives log lines.
// It is closed when the follower stops or, without Follow, at end of file.
func (f *Follower) Lines() <-chan event.RawLine {
	return f.lines
}

// Errors returns a channel that receives errors from tailing.
// Errors are sent non-blocking; if the channel is not read, errors are dropped.
func (f *Follower) Errors() <-chan error {
	return f.errors
}

// Stop stops following and closes all channels.
// Safe to call multiple times.
func (f *Follower) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	f.mu.Unlock()

	f.cancel()
	<-f.doneCh
	return f.t.Stop()
}

func (f *Follower) run() {
	defer close(f.doneCh)
	defer close(f.lines)
	defer close(f.errors)

	var seq uint64
	for {
		select {
		case <-f.ctx.Done():
			return
		case line, ok := <-f.t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				select {
				case f.errors <- fmt.Errorf("tail: %w", line.Err):
				case <-f.ctx.Done():
					return
				default:
					// Drop error only if buffer is full
				}
				continue
			}
			if line.Text == "" {
				continue
			}
			seq++
			select {
			case f.lines <- event.RawLine{Seq: seq, Text: line.Text}:
			case <-f.ctx.Done():
				return
			}
		}
	}
}
