package object

import (
	"errors"
	"fmt"
)

// Hash is a 40-character lowercase hex-encoded SHA-1 object id.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// ErrUnknownType is returned for object types outside blob, tree, commit
// and tag.
var ErrUnknownType = errors.New("unknown object type")

// ParseObjectType validates s as one of the four git object types.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownType, s)
	}
}

// Tree entry modes as they appear in git trees.
const (
	ModeTree    uint32 = 0o040000
	ModeFile    uint32 = 0o100644
	ModeExec    uint32 = 0o100755
	ModeSymlink uint32 = 0o120000
	ModeGitlink uint32 = 0o160000
)

// GitObject is one decoded object as delivered by a fetch. Index counts
// down from the total object count minus one.
type GitObject struct {
	Hash  Hash
	Type  ObjectType
	Data  []byte
	Index int
}

// Parsed is a decoded object: one of *Blob, *Tree, *Commit or *Tag.
type Parsed interface {
	ObjectHash() Hash
	Type() ObjectType
	parsed()
}

// Blob holds raw file data.
type Blob struct {
	Hash Hash
	Data []byte
}

// TreeEntry is one entry in a tree object. Path holds the raw name bytes.
type TreeEntry struct {
	Mode uint32
	Path string
	Hash Hash
}

// Tree holds tree entries in their on-disk order.
type Tree struct {
	Hash    Hash
	Entries []TreeEntry
}

// Header is one "key value" line of a commit or tag.
type Header struct {
	Key   string
	Value string
}

// Record is the shared commit/tag layout: header lines followed by a
// blank line and a free-text message.
type Record struct {
	Headers []Header
	Message string
}

// Commit is a decoded commit object.
type Commit struct {
	Hash Hash
	Record
}

// Tag is a decoded annotated tag object.
type Tag struct {
	Hash Hash
	Record
}

func (b *Blob) ObjectHash() Hash   { return b.Hash }
func (t *Tree) ObjectHash() Hash   { return t.Hash }
func (c *Commit) ObjectHash() Hash { return c.Hash }
func (t *Tag) ObjectHash() Hash    { return t.Hash }

func (*Blob) Type() ObjectType   { return TypeBlob }
func (*Tree) Type() ObjectType   { return TypeTree }
func (*Commit) Type() ObjectType { return TypeCommit }
func (*Tag) Type() ObjectType    { return TypeTag }

func (*Blob) parsed()   {}
func (*Tree) parsed()   {}
func (*Commit) parsed() {}
func (*Tag) parsed()    {}

// Get returns the value of the last header named key. Duplicate keys
// collapse to their final occurrence, as a flat key/value view would.
func (r *Record) Get(key string) (string, bool) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		if r.Headers[i].Key == key {
			return r.Headers[i].Value, true
		}
	}
	return "", false
}

// Values returns every value of key in header order.
func (r *Record) Values(key string) []string {
	var out []string
	for _, h := range r.Headers {
		if h.Key == key {
			out = append(out, h.Value)
		}
	}
	return out
}

// Map flattens the headers into a key/value map with "message" set to the
// message body. Later duplicates win.
func (r *Record) Map() map[string]string {
	out := make(map[string]string, len(r.Headers)+1)
	for _, h := range r.Headers {
		out[h.Key] = h.Value
	}
	out["message"] = r.Message
	return out
}

// TreeHash returns the commit's root tree.
func (c *Commit) TreeHash() Hash {
	v, _ := c.Get("tree")
	return Hash(v)
}

// Parents returns the commit's parents in order.
func (c *Commit) Parents() []Hash {
	vals := c.Values("parent")
	out := make([]Hash, len(vals))
	for i, v := range vals {
		out[i] = Hash(v)
	}
	return out
}

// Target returns the object the tag points at.
func (t *Tag) Target() Hash {
	v, _ := t.Get("object")
	return Hash(v)
}
