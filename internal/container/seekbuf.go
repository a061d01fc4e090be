package container

import (
	"bytes"
	"errors"
	"io"
)

// seekableBuffer adapts bytes.Buffer to io.WriteSeeker. The fmp4 marshalers
// seek backwards to patch box sizes after writing their contents.
type seekableBuffer struct {
	buf *bytes.Buffer
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	// Grow with zero padding if positioned past the end.
	if int(s.pos) > s.buf.Len() {
		s.buf.Write(make([]byte, int(s.pos)-s.buf.Len()))
	}

	var n int
	if int(s.pos) == s.buf.Len() {
		var err error
		n, err = s.buf.Write(p)
		if err != nil {
			return n, err
		}
	} else {
		// Overwrite in place, appending any overflow.
		b := s.buf.Bytes()
		n = copy(b[s.pos:], p)
		if n < len(p) {
			m, err := s.buf.Write(p[n:])
			if err != nil {
				return n + m, err
			}
			n += m
		}
	}
	s.pos += int64(n)
	return n, nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = int64(s.buf.Len()) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = pos
	return pos, nil
}
