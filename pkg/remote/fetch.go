package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/odvcencio/gitsink/pkg/intake"
	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/odvcencio/gitsink/pkg/repo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options configures Fetch.
type Options struct {
	// Transport overrides the scheme's default transport.
	Transport Transport
	SSH       SSHConfig
	Logger    *zap.Logger
}

// Session is an in-progress upload-pack exchange. It implements
// intake.Source: the advertised refs are known up front while progress,
// error text and objects arrive as the pack streams in.
type Session struct {
	conn   io.ReadWriteCloser
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	refs  repo.Advertisement
	caps  Capabilities
	lines []string

	progress chan string
	errs     chan string
	objects  chan object.GitObject
	objErr   chan error
}

var _ intake.Source = (*Session)(nil)

// Fetch connects to ep, reads its ref advertisement and requests every
// advertised ref. The returned session streams the pack in the
// background; callers drain it (typically via intake.Pipeline) and must
// Close it.
func Fetch(ctx context.Context, ep Endpoint, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	t := opts.Transport
	if t == nil {
		var err error
		if t, err = TransportFor(ep, opts.SSH, logger); err != nil {
			return nil, err
		}
	}

	conn, err := t.Connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:     conn,
		cancel:   cancel,
		logger:   logger,
		progress: make(chan string, 16),
		errs:     make(chan string, 4),
		objects:  make(chan object.GitObject, 64),
		objErr:   make(chan error, 1),
	}
	// Unblock transport reads if the caller gives up before the
	// negotiation is done.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	br := bufio.NewReaderSize(conn, 64<<10)
	if s.refs, s.caps, err = readAdvertisement(br); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	logger.Debug("ref advertisement",
		zap.Int("refs", len(s.refs)),
		zap.String("capabilities", s.caps.String()),
	)

	wants := wantHashes(s.refs)
	if len(wants) == 0 {
		// Empty repository: end the exchange without requesting a pack.
		logger.Info("remote repository is empty")
		err := WriteFlush(conn)
		s.finishEmpty()
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
		return s, nil
	}

	band := s.sidebandCap()
	if err := s.sendWants(wants, band); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	if err := s.readAcks(br); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	s.wg.Add(1)
	if band == "" {
		close(s.progress)
		close(s.errs)
		go func() {
			defer s.wg.Done()
			s.readPack(sctx, br)
		}()
		return s, nil
	}

	pr, pw := io.Pipe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.progress)
		defer close(s.errs)
		err := demuxSideband(br, pw,
			func(text string) error { return send(sctx, s.progress, text) },
			func(text string) error { return send(sctx, s.errs, text) },
		)
		pw.CloseWithError(err)
	}()
	go func() {
		defer s.wg.Done()
		s.readPack(sctx, pr)
		pr.Close()
	}()
	return s, nil
}

// sidebandCap returns the side-band flavor to request, or "" when the
// server offers none.
func (s *Session) sidebandCap() string {
	switch {
	case s.caps.Has("side-band-64k"):
		return "side-band-64k"
	case s.caps.Has("side-band"):
		return "side-band"
	}
	return ""
}

func (s *Session) sendWants(wants []object.Hash, band string) error {
	var caps []string
	if band != "" {
		caps = append(caps, band)
	}
	if s.caps.Has("ofs-delta") {
		caps = append(caps, "ofs-delta")
	}
	if s.caps.Has("agent") {
		caps = append(caps, "agent="+Agent)
	}
	for i, h := range wants {
		line := "want " + string(h)
		if i == 0 && len(caps) > 0 {
			line += " " + strings.Join(caps, " ")
		}
		if err := WritePktString(s.conn, line+"\n"); err != nil {
			return err
		}
	}
	if err := WriteFlush(s.conn); err != nil {
		return err
	}
	return WritePktString(s.conn, "done\n")
}

// readAcks consumes the negotiation response that precedes the pack.
func (s *Session) readAcks(br *bufio.Reader) error {
	for {
		payload, flush, err := ReadPkt(br)
		if err != nil {
			return fmt.Errorf("read negotiation: %w", err)
		}
		if flush {
			continue
		}
		line, err := pktText(payload)
		if err != nil {
			return err
		}
		s.lines = append(s.lines, line)
		if line == "NAK" || (strings.HasPrefix(line, "ACK ") && !strings.Contains(line, " continue")) {
			return nil
		}
	}
}

// readPack decodes the pack from r onto the objects channel.
func (s *Session) readPack(ctx context.Context, r io.Reader) {
	err := s.decodePack(ctx, r)
	close(s.objects)
	if err != nil {
		s.logger.Debug("pack stream failed", zap.Error(err))
		s.objErr <- err
	}
	close(s.objErr)
}

func (s *Session) decodePack(ctx context.Context, r io.Reader) error {
	pack, err := NewPackReader(r)
	if err != nil {
		return err
	}
	s.logger.Debug("pack header", zap.Int("objects", pack.NumObjects()))
	for {
		obj, err := pack.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read pack: %w", err)
		}
		if err := send(ctx, s.objects, obj); err != nil {
			return err
		}
	}
	// Let the demultiplexer reach the closing flush-pkt.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("read pack: %w", err)
	}
	return nil
}

func (s *Session) finishEmpty() {
	close(s.progress)
	close(s.errs)
	close(s.objects)
	close(s.objErr)
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refs returns the advertised refs in order.
func (s *Session) Refs() repo.Advertisement { return s.refs }

// Capabilities returns what the server advertised.
func (s *Session) Capabilities() Capabilities { return s.caps }

// Symrefs returns the symref=<marker>:<ref> pairs the server advertised.
func (s *Session) Symrefs() repo.Symrefs {
	vals := s.caps.Values("symref")
	if len(vals) == 0 {
		return nil
	}
	hints := make(repo.Symrefs, len(vals))
	for _, v := range vals {
		if marker, target, ok := strings.Cut(v, ":"); ok && marker != "" && target != "" {
			hints[marker] = target
		}
	}
	return hints
}

// Lines returns the negotiation lines read before the pack.
func (s *Session) Lines() intake.Stream[string] { return intake.Slice(s.lines...) }

// Progress returns side-band channel 2 text.
func (s *Session) Progress() intake.Stream[string] { return intake.Chan(s.progress, nil) }

// Errors returns side-band channel 3 text.
func (s *Session) Errors() intake.Stream[string] { return intake.Chan(s.errs, nil) }

// Objects returns the decoded pack objects.
func (s *Session) Objects() intake.Stream[object.GitObject] {
	return intake.Chan(s.objects, s.objErr)
}

// Close stops the background readers and closes the connection.
func (s *Session) Close() error {
	s.cancel()
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
