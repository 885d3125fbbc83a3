package tailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raidframer/raidlog-go/pkg/raidlog/event"
)

// ErrUnreadable is returned when an existing log file cannot be opened or read.
var ErrUnreadable = errors.New("log file unreadable")

const (
	// DefaultMaxRead bounds the bytes consumed by one Poll.
	DefaultMaxRead = 1 << 20

	// maxPartial bounds a line that never receives its newline.
	// A longer partial line is delivered as is.
	maxPartial = 1 << 20

	// tailProbe is how far back Open looks for a line boundary when
	// starting at the end of the file.
	tailProbe = 64 * 1024
)

// Source is the tailer's view of the file it reads.
type Source struct {
	Path string `json:"path"`

	// Size is the file size observed by the last poll.
	Size int64 `json:"size"`

	// Offset is the number of bytes consumed so far, including bytes held
	// in an incomplete trailing line.
	Offset int64 `json:"offset"`
}

// Batch is the result of one poll.
type Batch struct {
	Lines []event.RawLine

	// Rotated is set when the file shrank or was replaced and reading
	// restarted from offset 0.
	Rotated bool
}

// Option configures Open.
type Option func(*handleConfig)

type handleConfig struct {
	fromStart bool
	maxRead   int64
}

// WithFromStart reads the existing content instead of starting at the end.
func WithFromStart(fromStart bool) Option {
	return func(c *handleConfig) {
		c.fromStart = fromStart
	}
}

// WithMaxRead bounds the bytes read by a single Poll.
// Values <= 0 use DefaultMaxRead.
func WithMaxRead(n int64) Option {
	return func(c *handleConfig) {
		c.maxRead = n
	}
}

// Handle is an open, offset-tracking view of a growing log file.
// A Handle is not safe for concurrent use; it is owned by one polling loop.
type Handle struct {
	path    string
	f       *os.File
	info    os.FileInfo
	offset  int64
	size    int64
	partial []byte
	seq     uint64
	maxRead int64
}

// Open opens path for polling.
//
// By default the read cursor starts at the beginning of the last incomplete
// line at the end of the file (tail -f behavior), so a line being written
// during Open is still delivered whole.
func Open(path string, opts ...Option) (*Handle, error) {
	cfg := handleConfig{maxRead: DefaultMaxRead}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxRead <= 0 {
		cfg.maxRead = DefaultMaxRead
	}

	f, info, err := openFile(path)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		path:    path,
		f:       f,
		info:    info,
		size:    info.Size(),
		maxRead: cfg.maxRead,
	}
	if !cfg.fromStart {
		h.offset = lineStartNearEnd(f, info.Size())
	}
	return h, nil
}

// Source returns the current path, size and offset.
func (h *Handle) Source() Source {
	return Source{Path: h.path, Size: h.size, Offset: h.offset}
}

// Poll reads what was appended since the previous poll and returns the
// completed lines. It never blocks beyond one bounded read; when nothing new
// was written it returns an empty batch.
//
// Errors leave the handle usable: a missing file is reported wrapping
// os.ErrNotExist, other failures wrap ErrUnreadable.
func (h *Handle) Poll() (Batch, error) {
	var batch Batch

	if h.f == nil {
		return batch, fmt.Errorf("%w: %s: handle closed", ErrUnreadable, h.path)
	}

	current, err := os.Stat(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return batch, fmt.Errorf("stat %s: %w", h.path, err)
		}
		return batch, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	if !os.SameFile(current, h.info) || current.Size() < h.offset {
		if err := h.reset(); err != nil {
			return batch, err
		}
		batch.Rotated = true
		current = h.info
	}

	h.size = current.Size()
	if h.size <= h.offset {
		return batch, nil
	}

	n := h.size - h.offset
	if n > h.maxRead {
		n = h.maxRead
	}
	buf := make([]byte, n)
	read, err := h.f.ReadAt(buf, h.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return batch, fmt.Errorf("%w: read %s: %v", ErrUnreadable, h.path, err)
	}
	h.offset += int64(read)
	batch.Lines = h.split(buf[:read])
	return batch, nil
}

// Close releases the file. Safe to call multiple times.
func (h *Handle) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// reset reopens the path and rewinds to offset 0, dropping any partial line.
// Sequence numbers keep increasing across resets.
func (h *Handle) reset() error {
	f, info, err := openFile(h.path)
	if err != nil {
		return err
	}
	_ = h.f.Close()
	h.f = f
	h.info = info
	h.offset = 0
	h.size = info.Size()
	h.partial = nil
	return nil
}

// split joins data to the pending partial line and cuts it on '\n'.
// Blank lines are skipped.
func (h *Handle) split(data []byte) []event.RawLine {
	var lines []event.RawLine
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			h.partial = append(h.partial, data...)
			if len(h.partial) >= maxPartial {
				lines = h.emit(lines, h.partial)
				h.partial = nil
			}
			break
		}

		chunk := data[:i]
		if len(h.partial) > 0 {
			chunk = append(h.partial, chunk...)
			h.partial = nil
		}
		lines = h.emit(lines, chunk)
		data = data[i+1:]
	}
	return lines
}

func (h *Handle) emit(lines []event.RawLine, b []byte) []event.RawLine {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	if len(bytes.TrimSpace(b)) == 0 {
		return lines
	}
	h.seq++
	return append(lines, event.RawLine{
		Seq:  h.seq,
		Text: strings.ToValidUTF8(string(b), "�"),
	})
}

func openFile(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return f, info, nil
}

// lineStartNearEnd returns the offset just past the last '\n' within the
// final tailProbe bytes. Without one, a short file starts at 0 and a long
// one at its end.
func lineStartNearEnd(f *os.File, size int64) int64 {
	if size == 0 {
		return 0
	}
	probe := int64(tailProbe)
	if size < probe {
		probe = size
	}
	buf := make([]byte, probe)
	n, err := f.ReadAt(buf, size-probe)
	if err != nil && !errors.Is(err, io.EOF) {
		return size
	}
	buf = buf[:n]
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		return size - probe + int64(i) + 1
	}
	if probe == size {
		return 0
	}
	return size
}
