package remote

import (
	"bytes"
	"fmt"
	"io"
)

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// decodeOfsDeltaDistance reads the backward distance of an OFS_DELTA
// entry. Each continuation adds one before shifting, so encodings are
// unique.
func decodeOfsDeltaDistance(r io.ByteReader) (uint64, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("ofs-delta distance truncated: %w", err)
	}
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if c, err = r.ReadByte(); err != nil {
			return 0, fmt.Errorf("ofs-delta distance truncated: %w", err)
		}
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, nil
}

// maxPrealloc caps buffers sized from lengths the remote declares.
const maxPrealloc = 1 << 20

// applyDelta applies Git delta instructions to base and returns the result.
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}

	out := make([]byte, 0, min(resultSize, maxPrealloc))
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			// Copy: bits 0-3 select offset bytes, bits 4-6 size bytes.
			var offset, size int64
			for bit := uint(0); bit < 7; bit++ {
				if cmd&(1<<bit) == 0 {
					continue
				}
				b, err := dr.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("delta copy argument %d: %w", bit, err)
				}
				if bit < 4 {
					offset |= int64(b) << (8 * bit)
				} else {
					size |= int64(b) << (8 * (bit - 4))
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("delta copy out of bounds")
			}
			if uint64(len(out))+uint64(size) > resultSize {
				return nil, fmt.Errorf("delta result exceeds declared size %d", resultSize)
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("invalid delta command: 0")
		}
		if uint64(len(out))+uint64(cmd) > resultSize {
			return nil, fmt.Errorf("delta result exceeds declared size %d", resultSize)
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("delta insert: %w", err)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}
