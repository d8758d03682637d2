package logsource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DefaultPollInterval is how often a Tailer checks for new data at EOF.
const DefaultPollInterval = 100 * time.Millisecond

type TailOptions struct {
	StartAtEnd   bool
	PollInterval time.Duration
}

// Tailer follows a single growing file. Partial lines are buffered until their
// newline arrives, trailing CRs are stripped and a truncated file is re-read
// from the start.
type Tailer struct {
	fs   afero.Fs
	path string
	opts TailOptions

	offset int64
	buf    []byte

	readyOnce sync.Once
	ready     chan struct{}
}

func NewTailer(fs afero.Fs, path string, opts TailOptions) (*Tailer, error) {
	if path == "" {
		return nil, errors.New("tail: empty path")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Tailer{fs: fs, path: path, opts: opts, ready: make(chan struct{})}, nil
}

// Path returns the followed file.
func (t *Tailer) Path() string { return t.path }

// Ready is closed once the file is open and positioned.
func (t *Tailer) Ready() <-chan struct{} { return t.ready }

// Run delivers complete lines to onLine until ctx is done or reading fails.
// Cancellation is not an error.
func (t *Tailer) Run(ctx context.Context, onLine func(line string)) error {
	if onLine == nil {
		return errors.New("tail: onLine is nil")
	}

	f, err := t.fs.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	whence := io.SeekStart
	if t.opts.StartAtEnd {
		whence = io.SeekEnd
	}
	if t.offset, err = f.Seek(0, whence); err != nil {
		return err
	}
	t.readyOnce.Do(func() { close(t.ready) })

	readBuf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}

		fi, err := f.Stat()
		if err != nil {
			return err
		}
		if fi.Size() < t.offset {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			t.offset = 0
			t.buf = t.buf[:0]
		}

		n, rerr := f.Read(readBuf)
		if n > 0 {
			t.offset += int64(n)
			t.buf = append(t.buf, readBuf[:n]...)
			t.flush(onLine)
		}

		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return rerr
		}
		if n == 0 || rerr != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.opts.PollInterval):
			}
		}
	}
}

// flush emits every complete line in buf and keeps the remainder.
func (t *Tailer) flush(onLine func(string)) {
	for {
		idx := bytes.IndexByte(t.buf, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(t.buf[:idx], []byte{'\r'})
		if len(line) > 0 {
			onLine(string(line))
		}
		t.buf = t.buf[idx+1:]
	}

	if len(t.buf) > 0 {
		// Don't keep the large read buffer alive for a short remainder.
		t.buf = append([]byte(nil), t.buf...)
	}
}
