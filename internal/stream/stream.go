package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrNegativeOffset is returned by Seek when the resulting position would be
// before the start of the stream.
var ErrNegativeOffset = errors.New("stream: seek to negative offset")

// cache is the storage shared by a Stream and all of its clones. buf always
// holds exactly the bytes pulled from src so far.
type cache struct {
	buf    []byte
	src    io.ReadCloser
	eof    bool // src is known to be exhausted
	closed bool // src has been released
	err    error
}

// maxChunk bounds a single pull from the source so a large request never
// allocates more than it can fill.
const maxChunk = 32 * 1024

// readOnce issues a single Read of at most n bytes against the source. End
// of input is recorded rather than returned.
func (c *cache) readOnce(n int) (int, error) {
	if c.eof || c.closed || c.err != nil {
		return 0, c.err
	}
	n = min(n, maxChunk)
	if cap(c.buf)-len(c.buf) < n {
		grown := make([]byte, len(c.buf), max(len(c.buf)+n, 2*cap(c.buf), bytes.MinRead))
		copy(grown, c.buf)
		c.buf = grown
	}
	got, err := c.src.Read(c.buf[len(c.buf) : len(c.buf)+n])
	c.buf = c.buf[:len(c.buf)+got]
	if err == io.EOF {
		c.eof = true
		return got, nil
	}
	if err != nil {
		c.err = err
		return got, err
	}
	return got, nil
}

// fill pulls up to n more bytes from the source (n < 0 drains it). A
// source error is sticky: later calls return it without reading again.
func (c *cache) fill(n int) error {
	if c.eof || c.closed || c.err != nil {
		return c.err
	}
	if n < 0 {
		rest, err := io.ReadAll(c.src)
		c.buf = append(c.buf, rest...)
		if err != nil {
			c.err = err
			return err
		}
		c.eof = true
		return nil
	}

	for n > 0 && !c.eof {
		got, err := c.readOnce(n)
		if err != nil {
			return err
		}
		if got == 0 && !c.eof {
			// no progress; surface a short read instead of spinning
			return nil
		}
		n -= got
	}
	return nil
}

// fillLine pulls bytes until a newline lands in the cache after from, the
// cache holds limit bytes past from (limit > 0), or the source ends.
func (c *cache) fillLine(from, limit int) error {
	for {
		if from <= len(c.buf) {
			if bytes.IndexByte(c.buf[from:], '\n') >= 0 {
				return nil
			}
			if limit > 0 && len(c.buf)-from >= limit {
				return nil
			}
		}
		if c.eof || c.closed || c.err != nil {
			return c.err
		}
		before := len(c.buf)
		if err := c.fill(bytes.MinRead); err != nil {
			return err
		}
		if len(c.buf) == before && !c.eof {
			return nil
		}
	}
}

func (c *cache) release() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.src == nil {
		return nil
	}
	return c.src.Close()
}

// Stream makes a forward-only body replayable. Every byte pulled from the
// source is cached, so after a Seek the same bytes are served again without
// touching the source.
//
// Clones share the cache (storage, fill state and source) but keep their
// own cursor and read-complete flag. A Stream is not safe for concurrent
// use, and neither is a group of clones.
type Stream struct {
	c            *cache
	pos          int
	readComplete bool
}

// New wraps rc. The stream takes ownership of rc and closes it on Close.
func New(rc io.ReadCloser) *Stream {
	if rc == nil {
		return FromBytes(nil)
	}
	return &Stream{c: &cache{src: rc}}
}

// FromBytes returns a stream over b whose source is already exhausted.
func FromBytes(b []byte) *Stream {
	return &Stream{c: &cache{buf: b, eof: true}}
}

// Read implements io.Reader. Cached bytes are served first; once they run
// out a single Read is issued against the source.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= len(s.c.buf) {
		// a cursor seeked past the cache first catches the cache up
		err := s.c.fill(s.pos - len(s.c.buf))
		if err == nil && s.pos >= len(s.c.buf) {
			_, err = s.c.readOnce(len(p))
		}
		if err != nil && s.pos >= len(s.c.buf) {
			return 0, err
		}
	}
	if s.pos >= len(s.c.buf) {
		if s.c.eof || s.c.closed {
			s.readComplete = s.readComplete || s.c.eof
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, s.c.buf[s.pos:])
	s.pos += n
	return n, nil
}

// ReadN reads up to n bytes from the cursor. With n < 0 it reads to the end
// of the stream and marks the stream read-complete. A short result with a
// nil error means the source ended.
func (s *Stream) ReadN(n int) ([]byte, error) {
	if n < 0 {
		err := s.c.fill(-1)
		out := s.take(len(s.c.buf) - s.pos)
		s.readComplete = true
		return out, err
	}

	available := len(s.c.buf) - s.pos
	if n <= available {
		return s.take(n), nil
	}
	err := s.c.fill(n - available)
	if s.c.eof && len(s.c.buf)-s.pos < n {
		s.readComplete = true
	}
	return s.take(min(n, len(s.c.buf)-s.pos)), err
}

// ReadLine reads up to and including the next newline. When limit > 0 at
// most limit bytes are returned. An empty result means end of stream.
func (s *Stream) ReadLine(limit int) ([]byte, error) {
	err := s.c.fillLine(s.pos, limit)
	rest := s.c.buf[min(s.pos, len(s.c.buf)):]
	end := len(rest)
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		end = i + 1
	}
	if limit > 0 && end > limit {
		end = limit
	}
	if end == 0 && s.c.eof {
		s.readComplete = true
	}
	return s.take(end), err
}

// ReadLines reads every remaining line and marks the stream read-complete.
func (s *Stream) ReadLines() ([][]byte, error) {
	var lines [][]byte
	for {
		line, err := s.ReadLine(0)
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if err != nil {
			return lines, err
		}
		if len(line) == 0 {
			s.readComplete = true
			return lines, nil
		}
	}
}

// Seek implements io.Seeker. Seeking relative to the end drains the source
// to learn its length. Seeking past the cached data pulls just enough bytes;
// like fseek, seeking beyond the real end is not an error.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var dest int64
	switch whence {
	case io.SeekStart:
		dest = offset
	case io.SeekCurrent:
		dest = int64(s.pos) + offset
	case io.SeekEnd:
		err := s.c.fill(-1)
		s.readComplete = s.readComplete || s.c.eof
		if err != nil {
			return int64(s.pos), err
		}
		dest = int64(len(s.c.buf)) + offset
	default:
		return int64(s.pos), fmt.Errorf("stream: invalid whence %d", whence)
	}
	if dest < 0 {
		return int64(s.pos), ErrNegativeOffset
	}

	if short := int(dest) - len(s.c.buf); short > 0 {
		if err := s.c.fill(short); err != nil {
			return int64(s.pos), err
		}
	}
	s.pos = int(dest)
	return dest, nil
}

// Tell returns the cursor position.
func (s *Stream) Tell() int64 {
	return int64(s.pos)
}

// WriteTo implements io.WriterTo, copying from the cursor to the end of the
// stream. It leaves the stream read-complete.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	rest, readErr := s.ReadN(-1)
	n, err := w.Write(rest)
	if err == nil {
		err = readErr
	}
	return int64(n), err
}

// Clone returns an alias sharing this stream's cache. The clone's cursor
// starts at offset 0 and its read-complete flag starts as a copy of this
// stream's flag; both evolve independently afterwards.
func (s *Stream) Clone() *Stream {
	return &Stream{c: s.c, readComplete: s.readComplete}
}

// Close releases the source. Cached bytes remain readable; reading past
// them reports io.EOF and never reopens the source. Closing affects every
// clone since they share the source.
func (s *Stream) Close() error {
	return s.c.release()
}

// SetData replaces this stream's entire cache with b and rewinds. The
// stream detaches from its clones, which keep the previous data.
func (s *Stream) SetData(b []byte) {
	s.c = &cache{buf: b, eof: true}
	s.pos = 0
	s.readComplete = false
}

// Bytes returns the full contents, draining the source if needed. The
// cursor does not move.
func (s *Stream) Bytes() ([]byte, error) {
	err := s.c.fill(-1)
	return s.c.buf, err
}

// ReadComplete reports whether this stream has observed the end of the
// data through a full read, a seek to the end, or line exhaustion.
func (s *Stream) ReadComplete() bool {
	return s.readComplete
}

// Exhausted reports whether the shared cache holds the whole body.
func (s *Stream) Exhausted() bool {
	return s.c.eof
}

// Closed reports whether the source has been released.
func (s *Stream) Closed() bool {
	return s.c.closed
}

// Len returns the number of cached bytes.
func (s *Stream) Len() int {
	return len(s.c.buf)
}

// Shares reports whether s and other read from the same cache.
func (s *Stream) Shares(other *Stream) bool {
	return other != nil && s.c == other.c
}

func (s *Stream) take(n int) []byte {
	if n <= 0 || s.pos >= len(s.c.buf) {
		return []byte{}
	}
	out := make([]byte, n)
	copy(out, s.c.buf[s.pos:s.pos+n])
	s.pos += n
	return out
}
