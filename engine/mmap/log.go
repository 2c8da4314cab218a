package mmap

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
)

// Record layout: [kind:1][len:uvarint][payload:len][crc32:4].
// The payload is an encoded engine.Entry for puts and the raw key for tombstones,
// sealed by the instance cipher when encryption is enabled.
const (
	kindPut       = 0x01
	kindTombstone = 0xFE
)

// logFile is an append-only record log with an optional read-only mmap view.
type logFile struct {
	path string
	f    *os.File
	info os.FileInfo
	size int64 // logical end of valid data

	// mmap-backed readonly view; may be nil if mapping is unsupported
	data []byte
}

func openLogFile(path string, readOnly bool) (*logFile, error) {
	flags := os.O_RDWR | os.O_CREATE
	if readOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &logFile{path: path, f: f, info: info, size: info.Size()}, nil
}

// readAt copies from the mapped view when it covers the range, else falls back to ReadAt.
func (lf *logFile) readAt(buf []byte, off int64) error {
	end := off + int64(len(buf))
	if lf.data != nil && end <= int64(len(lf.data)) {
		copy(buf, lf.data[off:end])
		return nil
	}
	if _, err := lf.f.ReadAt(buf, off); err != nil {
		return err
	}
	return nil
}

// scan walks valid records from the start and returns the offset of the first
// byte that is not part of a valid record.
func (lf *logFile) scan(fn func(kind byte, payload []byte) error) (int64, error) {
	var off int64
	header := make([]byte, 1+binary.MaxVarintLen64)
	for off < lf.size {
		n := int64(len(header))
		if off+n > lf.size {
			n = lf.size - off
		}
		if n < 2 {
			break
		}
		if err := lf.readAt(header[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return off, err
		}
		kind := header[0]
		l, nlen := binary.Uvarint(header[1:n])
		if nlen <= 0 || l > uint64(lf.size) {
			// invalid varint; stop
			break
		}
		bodyOff := off + 1 + int64(nlen)
		next := bodyOff + int64(l) + 4
		if next > lf.size {
			// truncated record
			break
		}
		payload := make([]byte, l)
		if err := lf.readAt(payload, bodyOff); err != nil {
			break
		}
		var crcBuf [4]byte
		if err := lf.readAt(crcBuf[:], bodyOff+int64(l)); err != nil {
			break
		}
		if binary.LittleEndian.Uint32(crcBuf[:]) != crc32.ChecksumIEEE(payload) {
			// corruption; stop before this record
			break
		}
		if err := fn(kind, payload); err != nil {
			return off, err
		}
		off = next
	}
	return off, nil
}

// append writes one record at the logical end.
func (lf *logFile) append(kind byte, payload []byte) (int64, error) {
	rec := encodeRecord(kind, payload)
	if _, err := lf.f.WriteAt(rec, lf.size); err != nil {
		return 0, err
	}
	lf.size += int64(len(rec))
	return int64(len(rec)), nil
}

func (lf *logFile) truncate(size int64) error {
	if err := lf.f.Truncate(size); err != nil {
		return err
	}
	lf.size = size
	return lf.remap()
}

func (lf *logFile) close(sync bool) error {
	lf.unmap()
	var firstErr error
	if sync {
		firstErr = lf.f.Sync()
	}
	if err := lf.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func encodeRecord(kind byte, payload []byte) []byte {
	rec := make([]byte, 0, recordOverhead(len(payload)))
	rec = append(rec, kind)
	rec = binary.AppendUvarint(rec, uint64(len(payload)))
	rec = append(rec, payload...)
	return binary.LittleEndian.AppendUint32(rec, crc32.ChecksumIEEE(payload))
}

func recordOverhead(payloadLen int) int {
	return 1 + uvarintLen(uint64(payloadLen)) + payloadLen + 4
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
