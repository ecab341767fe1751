package remote

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/odvcencio/gitsink/pkg/object"
)

const (
	packHeaderSize       = 12
	supportedPackVersion = 2
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// PackObjectType is the Git pack object type encoding used in object entry
// headers. Values match the canonical Git wire/storage format.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

func (t PackObjectType) objectType() (object.ObjectType, bool) {
	switch t {
	case PackCommit:
		return object.TypeCommit, true
	case PackTree:
		return object.TypeTree, true
	case PackBlob:
		return object.TypeBlob, true
	case PackTag:
		return object.TypeTag, true
	default:
		return "", false
	}
}

// PackHeader is the fixed-size Git pack header.
//
// Bytes:
//   - 0..3:  "PACK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of objects (big-endian)
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// UnmarshalPackHeader parses a canonical Git pack header.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, fmt.Errorf("invalid pack magic %q", data[:4])
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedPackVersion {
		return nil, fmt.Errorf("unsupported pack version %d", version)
	}

	return &PackHeader{
		Version:    version,
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// countingReader tracks the stream offset so OFS_DELTA bases can be found.
// It implements io.ByteReader so the inflater never reads past the end of
// an entry.
type countingReader struct {
	br *bufio.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

type packBase struct {
	typ  object.ObjectType
	data []byte
}

// PackReader decodes a pack stream one object at a time. Deltified
// entries are resolved against earlier entries of the same pack, which
// are kept in memory until the reader is discarded.
type PackReader struct {
	r      *countingReader
	header PackHeader
	next   uint32

	byOffset map[int64]object.Hash
	byHash   map[object.Hash]packBase
}

// NewPackReader reads and validates the pack header from r.
func NewPackReader(r io.Reader) (*PackReader, error) {
	cr := &countingReader{br: bufio.NewReaderSize(r, 64<<10)}
	var hdr [packHeaderSize]byte
	if _, err := io.ReadFull(cr, hdr[:]); err != nil {
		return nil, fmt.Errorf("read pack header: %w", noEOF(err))
	}
	header, err := UnmarshalPackHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	return &PackReader{
		r:        cr,
		header:   *header,
		byOffset: make(map[int64]object.Hash),
		byHash:   make(map[object.Hash]packBase),
	}, nil
}

// NumObjects returns the object count announced by the pack header.
func (p *PackReader) NumObjects() int {
	return int(p.header.NumObjects)
}

// Next returns the next whole object. Index counts down from
// NumObjects()-1 to 0. After the last object the trailing checksum is
// consumed and io.EOF returned.
func (p *PackReader) Next() (object.GitObject, error) {
	if p.next >= p.header.NumObjects {
		if p.next == p.header.NumObjects {
			p.next++
			var trailer [object.HashSize]byte
			if _, err := io.ReadFull(p.r, trailer[:]); err != nil {
				return object.GitObject{}, fmt.Errorf("read pack trailer: %w", noEOF(err))
			}
		}
		return object.GitObject{}, io.EOF
	}
	i := p.next
	p.next++

	offset := p.r.n
	packType, size, err := decodePackEntryHeader(p.r)
	if err != nil {
		return object.GitObject{}, fmt.Errorf("entry %d: %w", i, noEOF(err))
	}

	var base *packBase
	switch packType {
	case PackOfsDelta:
		distance, err := decodeOfsDeltaDistance(p.r)
		if err != nil {
			return object.GitObject{}, fmt.Errorf("entry %d: %w", i, noEOF(err))
		}
		h, ok := p.byOffset[offset-int64(distance)]
		if !ok {
			return object.GitObject{}, fmt.Errorf("entry %d: ofs-delta base at offset %d not found", i, offset-int64(distance))
		}
		b := p.byHash[h]
		base = &b
	case PackRefDelta:
		var raw [object.HashSize]byte
		if _, err := io.ReadFull(p.r, raw[:]); err != nil {
			return object.GitObject{}, fmt.Errorf("entry %d: ref-delta base: %w", i, noEOF(err))
		}
		h, _ := object.HashFromBytes(raw[:])
		b, ok := p.byHash[h]
		if !ok {
			return object.GitObject{}, fmt.Errorf("entry %d: ref-delta base %s not in pack", i, h)
		}
		base = &b
	}

	raw, err := p.inflate(size)
	if err != nil {
		return object.GitObject{}, fmt.Errorf("entry %d: %w", i, err)
	}

	var objType object.ObjectType
	if base != nil {
		if raw, err = applyDelta(base.data, raw); err != nil {
			return object.GitObject{}, fmt.Errorf("entry %d: %w", i, err)
		}
		objType = base.typ
	} else {
		var ok bool
		if objType, ok = packType.objectType(); !ok {
			return object.GitObject{}, fmt.Errorf("entry %d: unsupported pack object type %d", i, packType)
		}
	}

	h := object.HashObject(objType, raw)
	p.byOffset[offset] = h
	p.byHash[h] = packBase{typ: objType, data: raw}

	return object.GitObject{
		Hash:  h,
		Type:  objType,
		Data:  raw,
		Index: int(p.header.NumObjects - 1 - i),
	}, nil
}

func (p *PackReader) inflate(size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(p.r)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", noEOF(err))
	}
	buf := bytes.NewBuffer(make([]byte, 0, min(size, maxPrealloc)))
	// One byte past the declared size is enough to detect an oversized entry.
	limit := int64(math.MaxInt64)
	if size < math.MaxInt64 {
		limit = int64(size) + 1
	}
	if _, err := buf.ReadFrom(io.LimitReader(zr, limit)); err != nil {
		_ = zr.Close()
		return nil, fmt.Errorf("decompress: %w", noEOF(err))
	}
	raw := buf.Bytes()
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("close zlib stream: %w", err)
	}
	if uint64(len(raw)) != size {
		return nil, fmt.Errorf("size mismatch header=%d decoded=%d", size, len(raw))
	}
	return raw, nil
}

// noEOF keeps a truncated pack from looking like the end of the stream.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// decodePackEntryHeader decodes the variable-length object entry header:
// 3 type bits and 4 size bits in the first byte, then 7 size bits per
// continuation byte.
func decodePackEntryHeader(r io.ByteReader) (PackObjectType, uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("entry header truncated: %w", err)
	}
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)

	for b&0x80 != 0 {
		if b, err = r.ReadByte(); err != nil {
			return 0, 0, fmt.Errorf("entry header truncated: %w", err)
		}
		if shift > 57 {
			return 0, 0, fmt.Errorf("entry size overflows")
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}
	return objType, size, nil
}
