package remote

import (
	"fmt"
	"io"
	"strings"
)

// Side-band channel identifiers.
const (
	SidebandData     byte = 0x01
	SidebandProgress byte = 0x02
	SidebandError    byte = 0x03
)

// demuxSideband reads side-band pkt-lines from r until a flush-pkt,
// writing pack data to data and handing progress and error text to the
// callbacks. A message on the error channel ends the stream with a
// RemoteError.
func demuxSideband(r io.Reader, data io.Writer, onProgress, onError func(string) error) error {
	for {
		payload, flush, err := ReadPkt(r)
		if err != nil {
			return fmt.Errorf("read side-band: %w", err)
		}
		if flush {
			return nil
		}
		if len(payload) == 0 {
			continue
		}
		channel, body := payload[0], payload[1:]
		switch channel {
		case SidebandData:
			if _, err := data.Write(body); err != nil {
				return err
			}
		case SidebandProgress:
			if err := onProgress(string(body)); err != nil {
				return err
			}
		case SidebandError:
			msg := string(body)
			if err := onError(msg); err != nil {
				return err
			}
			return &RemoteError{Message: strings.TrimRight(msg, "\n")}
		default:
			// Servers without side-band may still send ERR lines here.
			if _, err := pktText(payload); err != nil {
				return err
			}
			return fmt.Errorf("read side-band: unknown channel %d", channel)
		}
	}
}
