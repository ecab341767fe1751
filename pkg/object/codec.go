package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DecodeError reports a payload that does not follow its type's grammar.
type DecodeError struct {
	Type   ObjectType
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %s", e.Type, e.Offset, e.Reason)
}

// Parse decodes obj according to its type and attaches its hash.
func Parse(obj GitObject) (Parsed, error) {
	switch obj.Type {
	case TypeBlob:
		b := DecodeBlob(obj.Data)
		b.Hash = obj.Hash
		return b, nil
	case TypeTree:
		tr, err := DecodeTree(obj.Data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", obj.Hash, err)
		}
		tr.Hash = obj.Hash
		return tr, nil
	case TypeCommit:
		rec, err := decodeRecord(TypeCommit, obj.Data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", obj.Hash, err)
		}
		return &Commit{Hash: obj.Hash, Record: *rec}, nil
	case TypeTag:
		rec, err := decodeRecord(TypeTag, obj.Data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", obj.Hash, err)
		}
		return &Tag{Hash: obj.Hash, Record: *rec}, nil
	default:
		return nil, fmt.Errorf("parse %s: %w %q", obj.Hash, ErrUnknownType, obj.Type)
	}
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// DecodeBlob wraps raw bytes as a Blob.
func DecodeBlob(data []byte) *Blob {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// DecodeTree parses the binary tree encoding:
//
//	<octal mode> SP <path> NUL <20 raw hash bytes>
//
// repeated until the buffer is exhausted. Entry order is preserved.
func DecodeTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	i := 0
	for i < len(data) {
		sp := bytes.IndexByte(data[i:], ' ')
		if sp < 0 {
			return nil, &DecodeError{Type: TypeTree, Offset: i, Reason: "mode not terminated by space"}
		}
		mode, err := strconv.ParseUint(string(data[i:i+sp]), 8, 32)
		if err != nil {
			return nil, &DecodeError{Type: TypeTree, Offset: i, Reason: fmt.Sprintf("bad mode %q", data[i:i+sp])}
		}
		i += sp + 1

		nul := bytes.IndexByte(data[i:], 0)
		if nul < 0 {
			return nil, &DecodeError{Type: TypeTree, Offset: i, Reason: "path not terminated by NUL"}
		}
		path := string(data[i : i+nul])
		i += nul + 1

		if len(data)-i < HashSize {
			return nil, &DecodeError{Type: TypeTree, Offset: i, Reason: fmt.Sprintf("truncated hash: %d bytes left", len(data)-i)}
		}
		h, _ := HashFromBytes(data[i : i+HashSize])
		i += HashSize

		tr.Entries = append(tr.Entries, TreeEntry{Mode: uint32(mode), Path: path, Hash: h})
	}
	return tr, nil
}

// EncodeTree serializes entries in their given order; it is the inverse of
// DecodeTree for canonical input.
func EncodeTree(tr *Tree) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range tr.Entries {
		raw, err := e.Hash.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encode tree entry %q: %w", e.Path, err)
		}
		fmt.Fprintf(&buf, "%o %s\x00", e.Mode, e.Path)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Commit / Tag
// ---------------------------------------------------------------------------

// DecodeRecord parses the header/message grammar shared by commit and tag
// objects:
//
//	key SP value LF     (one or more)
//	LF
//	message
//
// Lines starting with a space continue the previous header's value
// (gpgsig, mergetag). The message is trimmed of surrounding whitespace.
func DecodeRecord(data []byte) (*Record, error) {
	return decodeRecord(TypeCommit, data)
}

func decodeRecord(objType ObjectType, data []byte) (*Record, error) {
	rec := &Record{}
	i := 0
	for i < len(data) {
		if data[i] == '\n' {
			rec.Message = strings.TrimSpace(string(data[i+1:]))
			return rec, nil
		}

		lf := bytes.IndexByte(data[i:], '\n')
		if lf < 0 {
			return nil, &DecodeError{Type: objType, Offset: i, Reason: "header not terminated by linefeed"}
		}
		line := data[i : i+lf]

		if line[0] == ' ' {
			if len(rec.Headers) == 0 {
				return nil, &DecodeError{Type: objType, Offset: i, Reason: "continuation line before any header"}
			}
			last := &rec.Headers[len(rec.Headers)-1]
			last.Value += "\n" + string(line[1:])
			i += lf + 1
			continue
		}

		key, val, ok := bytes.Cut(line, []byte{' '})
		if !ok {
			return nil, &DecodeError{Type: objType, Offset: i, Reason: fmt.Sprintf("header %q has no value", line)}
		}
		rec.Headers = append(rec.Headers, Header{Key: string(key), Value: string(val)})
		i += lf + 1
	}
	return rec, nil
}

// EncodeRecord serializes headers and message in the commit/tag layout.
// Multi-line values are written with continuation lines.
func EncodeRecord(rec *Record) []byte {
	var buf bytes.Buffer
	for _, h := range rec.Headers {
		buf.WriteString(h.Key)
		buf.WriteByte(' ')
		buf.WriteString(strings.ReplaceAll(h.Value, "\n", "\n "))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(rec.Message)
	if rec.Message != "" && !strings.HasSuffix(rec.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
