package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	hashA = Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = Hash("0123456789abcdef0123456789abcdef01234567")
	hashC = Hash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")
)

func rawHash(t *testing.T, h Hash) []byte {
	t.Helper()
	raw, err := h.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestDecodeTree(t *testing.T) {
	var payload []byte
	payload = append(payload, "100644 README.md\x00"...)
	payload = append(payload, rawHash(t, hashA)...)
	payload = append(payload, "40000 src\x00"...)
	payload = append(payload, rawHash(t, hashB)...)

	tr, err := DecodeTree(payload)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	want := []TreeEntry{
		{Mode: ModeFile, Path: "README.md", Hash: hashA},
		{Mode: ModeTree, Path: "src", Hash: hashB},
	}
	if diff := cmp.Diff(want, tr.Entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTreePreservesOrder(t *testing.T) {
	var payload []byte
	for _, name := range []string{"zeta", "alpha", "mid"} {
		payload = append(payload, "100755 "+name+"\x00"...)
		payload = append(payload, rawHash(t, hashC)...)
	}
	tr, err := DecodeTree(payload)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	var got []string
	for _, e := range tr.Entries {
		got = append(got, e.Path)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, got); diff != "" {
		t.Fatalf("order changed (-want +got):\n%s", diff)
	}
}

func TestDecodeTreeRawPathBytes(t *testing.T) {
	var payload []byte
	payload = append(payload, "100644 caf\xe9 \xff\x00"...)
	payload = append(payload, rawHash(t, hashA)...)
	tr, err := DecodeTree(payload)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if tr.Entries[0].Path != "caf\xe9 \xff" {
		t.Fatalf("path = %q", tr.Entries[0].Path)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	var payload []byte
	entries := []struct {
		mode string
		name string
		hash Hash
	}{
		{"100644", ".gitignore", hashA},
		{"120000", "link", hashB},
		{"160000", "vendor", hashC},
		{"40000", "pkg", hashA},
	}
	for _, e := range entries {
		payload = append(payload, e.mode+" "+e.name+"\x00"...)
		payload = append(payload, rawHash(t, e.hash)...)
	}

	tr, err := DecodeTree(payload)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	got, err := EncodeTree(tr)
	if err != nil {
		t.Fatalf("EncodeTree: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", got, payload)
	}
}

func TestEncodeTreeRejectsInvalidHash(t *testing.T) {
	tr := &Tree{Entries: []TreeEntry{{Mode: 0o100644, Path: "a", Hash: Hash("abc")}}}
	if _, err := EncodeTree(tr); err == nil {
		t.Fatal("EncodeTree should reject a short hash")
	}
}

func TestDecodeTreeEmpty(t *testing.T) {
	tr, err := DecodeTree(nil)
	if err != nil {
		t.Fatalf("DecodeTree(nil): %v", err)
	}
	if len(tr.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(tr.Entries))
	}
}

func TestDecodeTreeMalformed(t *testing.T) {
	good := append([]byte("100644 a\x00"), rawHash(t, hashA)...)
	cases := map[string][]byte{
		"no space":       []byte("100644"),
		"bad mode":       append([]byte("10x644 a\x00"), rawHash(t, hashA)...),
		"no nul":         []byte("100644 abc"),
		"truncated hash": good[:len(good)-1],
	}
	for name, payload := range cases {
		_, err := DecodeTree(payload)
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("%s: error = %v, want DecodeError", name, err)
			continue
		}
		if derr.Type != TypeTree {
			t.Errorf("%s: DecodeError.Type = %s", name, derr.Type)
		}
	}
}

func TestDecodeRecordCommit(t *testing.T) {
	payload := "tree " + string(hashC) + "\n" +
		"parent " + string(hashA) + "\n" +
		"author Alice <alice@example.com> 1700000000 +0000\n" +
		"\n" +
		"Hello\n"
	rec, err := DecodeRecord([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	want := map[string]string{
		"tree":    string(hashC),
		"parent":  string(hashA),
		"author":  "Alice <alice@example.com> 1700000000 +0000",
		"message": "Hello",
	}
	if diff := cmp.Diff(want, rec.Map()); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecordMessagePreservesInternalNewlines(t *testing.T) {
	payload := "tree " + string(hashC) + "\n\nSubject\n\nBody line 1\nBody line 2\n\n\n"
	rec, err := DecodeRecord([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if want := "Subject\n\nBody line 1\nBody line 2"; rec.Message != want {
		t.Fatalf("message = %q, want %q", rec.Message, want)
	}
}

func TestDecodeRecordDuplicateKeys(t *testing.T) {
	payload := "tree " + string(hashC) + "\n" +
		"parent " + string(hashA) + "\n" +
		"parent " + string(hashB) + "\n" +
		"\nmerge\n"
	rec, err := DecodeRecord([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if v, _ := rec.Get("parent"); v != string(hashB) {
		t.Errorf("Get(parent) = %s, want last occurrence %s", v, hashB)
	}
	if diff := cmp.Diff([]string{string(hashA), string(hashB)}, rec.Values("parent")); diff != "" {
		t.Errorf("Values(parent) (-want +got):\n%s", diff)
	}
	c := &Commit{Record: *rec}
	if diff := cmp.Diff([]Hash{hashA, hashB}, c.Parents()); diff != "" {
		t.Errorf("Parents (-want +got):\n%s", diff)
	}
	if c.TreeHash() != hashC {
		t.Errorf("TreeHash = %s", c.TreeHash())
	}
}

func TestDecodeRecordContinuationLines(t *testing.T) {
	payload := "tree " + string(hashC) + "\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" \n" +
		" abc\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\nsigned\n"
	rec, err := DecodeRecord([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	sig, _ := rec.Get("gpgsig")
	if want := "-----BEGIN PGP SIGNATURE-----\n\nabc\n-----END PGP SIGNATURE-----"; sig != want {
		t.Fatalf("gpgsig = %q, want %q", sig, want)
	}
	if rec.Message != "signed" {
		t.Fatalf("message = %q", rec.Message)
	}
}

func TestDecodeRecordNoMessage(t *testing.T) {
	rec, err := DecodeRecord([]byte("tree " + string(hashC) + "\n"))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if rec.Message != "" || len(rec.Headers) != 1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	for _, payload := range []string{
		"tree " + string(hashC),
		"treeonly\n\nmsg",
		" leading continuation\n\nmsg",
	} {
		_, err := DecodeRecord([]byte(payload))
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("DecodeRecord(%q) error = %v, want DecodeError", payload, err)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rec := &Record{
		Headers: []Header{
			{Key: "object", Value: string(hashA)},
			{Key: "type", Value: "commit"},
			{Key: "tag", Value: "v1.0.0"},
			{Key: "tagger", Value: "Bob <bob@example.com> 1700000000 -0700"},
		},
		Message: "release 1.0.0\n\nnotes",
	}
	data := EncodeRecord(rec)
	if !strings.HasSuffix(string(data), "notes\n") {
		t.Fatalf("encoded = %q", data)
	}
	got, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestParseDispatch(t *testing.T) {
	treePayload := append([]byte("100644 a\x00"), rawHash(t, hashA)...)
	tagPayload := []byte("object " + string(hashA) + "\ntype commit\ntag v1\n\nrelease\n")

	cases := []struct {
		obj  GitObject
		want ObjectType
	}{
		{GitObject{Hash: hashA, Type: TypeBlob, Data: []byte("hi")}, TypeBlob},
		{GitObject{Hash: hashB, Type: TypeTree, Data: treePayload}, TypeTree},
		{GitObject{Hash: hashC, Type: TypeCommit, Data: []byte("tree " + string(hashB) + "\n\nx")}, TypeCommit},
		{GitObject{Hash: hashA, Type: TypeTag, Data: tagPayload}, TypeTag},
	}
	for _, tc := range cases {
		p, err := Parse(tc.obj)
		if err != nil {
			t.Fatalf("Parse %s: %v", tc.obj.Type, err)
		}
		if p.Type() != tc.want {
			t.Errorf("Parse type = %s, want %s", p.Type(), tc.want)
		}
		if p.ObjectHash() != tc.obj.Hash {
			t.Errorf("Parse hash = %s, want %s", p.ObjectHash(), tc.obj.Hash)
		}
	}

	p, err := Parse(cases[3].obj)
	if err != nil {
		t.Fatal(err)
	}
	if tag := p.(*Tag); tag.Target() != hashA {
		t.Errorf("tag target = %s", tag.Target())
	}

	blob, err := Parse(cases[0].obj)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob.(*Blob).Data, []byte("hi")) {
		t.Errorf("blob data = %q", blob.(*Blob).Data)
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse(GitObject{Hash: hashA, Type: ObjectType("entity"), Data: nil})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("Parse error = %v, want ErrUnknownType", err)
	}
}
