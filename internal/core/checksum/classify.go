package checksum

import (
	"errors"
	"io"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// SampleSize is how many leading bytes are inspected by Classify
const SampleSize = 256

// ClassifyReader samples up to SampleSize bytes and reports ClassBinary if
// any byte is outside printable ASCII and not NUL, tab, LF or CR.
// A read error counts as binary.
func ClassifyReader(r io.Reader) domain.FileClass {
	buf := make([]byte, SampleSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.ClassBinary
	}

	for _, b := range buf[:n] {
		if !isTextByte(b) {
			return domain.ClassBinary
		}
	}
	return domain.ClassOther
}

func isTextByte(b byte) bool {
	switch {
	case b == 0, b == '\t', b == '\n', b == '\r':
		return true
	case b >= 32 && b <= 126:
		return true
	}
	return false
}
