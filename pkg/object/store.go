package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// PersistenceError reports a failed directory creation or file write.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is a git loose object store with the 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	root string
}

// NewStore creates a Store rooted at a git directory. The objects/
// subdirectories are created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// ObjectPath returns the filesystem path for a given hash. h must be a
// valid object id.
func (s *Store) ObjectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if _, err := ParseHash(string(h)); err != nil {
		return false
	}
	_, err := os.Stat(s.ObjectPath(h))
	return err == nil
}

// Write stores data under h as a zlib-compressed "type len\0content"
// blob. The hash is trusted, not recomputed. An existing object at the
// same path is replaced.
func (s *Store) Write(h Hash, objType ObjectType, data []byte) error {
	if _, err := ParseHash(string(h)); err != nil {
		return fmt.Errorf("object write: %w", err)
	}
	if _, err := ParseObjectType(string(objType)); err != nil {
		return fmt.Errorf("object write %s: %w", h, err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(envelope(objType, len(data))); err != nil {
		return fmt.Errorf("object write %s: deflate: %w", h, err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("object write %s: deflate: %w", h, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("object write %s: deflate: %w", h, err)
	}

	return WriteFileAtomic(s.ObjectPath(h), buf.Bytes(), 0o444)
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if _, err := ParseHash(string(h)); err != nil {
		return "", nil, fmt.Errorf("object read: %w", err)
	}
	f, err := os.Open(s.ObjectPath(h))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", h, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", h, err)
	}
	if err := zr.Close(); err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", h, err)
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := raw[:nulIdx]
	content := raw[nulIdx+1:]

	typ, size, ok := bytes.Cut(header, []byte{' '})
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	objType, err := ParseObjectType(string(typ))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	length, err := strconv.Atoi(string(size))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, size, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	return objType, content, nil
}

// ReadParsed reads and decodes an object.
func (s *Store) ReadParsed(h Hash) (Parsed, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	return Parse(GitObject{Hash: h, Type: objType, Data: data})
}

// WriteFileAtomic writes data to path through a temp file and rename,
// creating parent directories as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &PersistenceError{Op: "tmpfile", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
