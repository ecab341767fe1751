package remote

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/odvcencio/gitsink/pkg/repo"
)

// readAdvertisement parses an upload-pack ref advertisement up to its
// flush-pkt. The first ref line carries capabilities after a NUL. An
// empty repository advertises "capabilities^{}" with the zero id.
func readAdvertisement(r *bufio.Reader) (repo.Advertisement, Capabilities, error) {
	var (
		adv   repo.Advertisement
		caps  = ParseCapabilities("")
		first = true
	)
	for {
		payload, flush, err := ReadPkt(r)
		if err != nil {
			return nil, caps, fmt.Errorf("read ref advertisement: %w", err)
		}
		if flush {
			return adv, caps, nil
		}
		line, err := pktText(payload)
		if err != nil {
			return nil, caps, err
		}
		if first && strings.HasPrefix(line, "version ") {
			continue
		}
		if first {
			var rawCaps string
			line, rawCaps, _ = strings.Cut(line, "\x00")
			caps = ParseCapabilities(rawCaps)
			first = false
		}

		hexHash, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, caps, fmt.Errorf("read ref advertisement: malformed line %q", line)
		}
		h, err := object.ParseHash(hexHash)
		if err != nil {
			return nil, caps, fmt.Errorf("read ref advertisement: %w", err)
		}
		if name == "capabilities^{}" {
			continue
		}
		adv = append(adv, repo.RefEntry{Name: name, Hash: h})
	}
}

// wantHashes returns the distinct hashes of canonical refs, in
// advertisement order.
func wantHashes(adv repo.Advertisement) []object.Hash {
	seen := make(map[object.Hash]struct{}, len(adv))
	var out []object.Hash
	for _, ref := range adv {
		if strings.HasSuffix(ref.Name, "^{}") {
			continue
		}
		if _, ok := seen[ref.Hash]; ok {
			continue
		}
		seen[ref.Hash] = struct{}{}
		out = append(out, ref.Hash)
	}
	return out
}
