package remote

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// MaxPktPayload is the largest payload a single pkt-line may carry.
	MaxPktPayload = 65516
	pktLenSize    = 4
)

// ErrPktTooLong is returned when a payload exceeds MaxPktPayload.
var ErrPktTooLong = errors.New("pkt-line too long")

// WritePkt writes payload as one pkt-line: four hex digits giving the
// total length (including themselves), then the payload.
func WritePkt(w io.Writer, payload []byte) error {
	if len(payload) > MaxPktPayload {
		return ErrPktTooLong
	}
	buf := make([]byte, 0, pktLenSize+len(payload))
	buf = fmt.Appendf(buf, "%04x", pktLenSize+len(payload))
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write pkt-line: %w", err)
	}
	return nil
}

// WritePktString writes s as one pkt-line.
func WritePktString(w io.Writer, s string) error {
	return WritePkt(w, []byte(s))
}

// WriteFlush writes a flush-pkt ("0000").
func WriteFlush(w io.Writer) error {
	if _, err := io.WriteString(w, "0000"); err != nil {
		return fmt.Errorf("write flush-pkt: %w", err)
	}
	return nil
}

// ReadPkt reads one pkt-line. It returns a nil payload and flush=true for
// a flush-pkt (and for the v2 delimiter/response-end packets).
func ReadPkt(r io.Reader) (payload []byte, flush bool, err error) {
	var hdr [pktLenSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, fmt.Errorf("read pkt-line length: %w", err)
		}
		return nil, false, err
	}
	n, err := strconv.ParseUint(string(hdr[:]), 16, 16)
	if err != nil {
		return nil, false, fmt.Errorf("read pkt-line: bad length %q", hdr[:])
	}
	switch {
	case n < pktLenSize:
		return nil, true, nil
	case n == pktLenSize:
		return []byte{}, false, nil
	}
	payload = make([]byte, n-pktLenSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, fmt.Errorf("read pkt-line payload: %w", err)
	}
	return payload, false, nil
}

// pktText trims a single trailing linefeed from a text pkt-line and turns
// ERR lines into a RemoteError.
func pktText(payload []byte) (string, error) {
	s := strings.TrimSuffix(string(payload), "\n")
	if msg, ok := strings.CutPrefix(s, "ERR "); ok {
		return "", &RemoteError{Message: msg}
	}
	return s, nil
}
