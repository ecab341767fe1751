package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Transport opens a byte stream to a remote's upload-pack.
type Transport interface {
	Connect(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error)
}

// TransportFor returns the transport for ep's scheme.
func TransportFor(ep Endpoint, sshCfg SSHConfig, logger *zap.Logger) (Transport, error) {
	switch ep.Scheme {
	case "git":
		return &TCPTransport{}, nil
	case "ssh":
		return &SSHTransport{Config: sshCfg, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("no transport for scheme %q", ep.Scheme)
	}
}

// TCPTransport speaks the git:// daemon protocol.
type TCPTransport struct {
	Dialer net.Dialer
}

// Connect dials the daemon and sends the upload-pack request line.
func (t *TCPTransport) Connect(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error) {
	conn, err := t.Dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", ep.Addr(), err)
	}
	request := "git-upload-pack " + ep.Path + "\x00host=" + ep.Host + "\x00"
	if err := WritePktString(conn, request); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// SSHConfig holds ssh transport settings.
type SSHConfig struct {
	// User is used when the endpoint names none. Defaults to $USER.
	User string
	// KnownHosts is the known_hosts file used to verify host keys.
	// Defaults to ~/.ssh/known_hosts.
	KnownHosts string
}

// SSHTransport runs git-upload-pack over an ssh session, authenticating
// through the ssh agent.
type SSHTransport struct {
	Config SSHConfig
	Logger *zap.Logger
}

// Connect opens an ssh session and starts git-upload-pack on the remote.
func (t *SSHTransport) Connect(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	user := ep.User
	if user == "" {
		user = t.Config.User
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	hostKeys, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("ssh: SSH_AUTH_SOCK is not set; an ssh agent is required")
	}
	var d net.Dialer
	agentConn, err := d.DialContext(ctx, "unix", sock)
	if err != nil {
		return nil, fmt.Errorf("ssh: connect agent: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)},
		HostKeyCallback: hostKeys,
	}
	conn, err := d.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		agentConn.Close()
		return nil, fmt.Errorf("connect %s: %w", ep.Addr(), err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, ep.Addr(), cfg)
	if err != nil {
		conn.Close()
		agentConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", ep.Addr(), err)
	}
	client := ssh.NewClient(c, chans, reqs)

	sc := &sshConn{client: client, agent: agentConn}
	if sc.session, err = client.NewSession(); err != nil {
		return nil, multierr.Append(fmt.Errorf("ssh session: %w", err), sc.Close())
	}
	if sc.stdin, err = sc.session.StdinPipe(); err != nil {
		return nil, multierr.Append(fmt.Errorf("ssh stdin: %w", err), sc.Close())
	}
	if sc.stdout, err = sc.session.StdoutPipe(); err != nil {
		return nil, multierr.Append(fmt.Errorf("ssh stdout: %w", err), sc.Close())
	}
	sc.session.Stderr = zapWriter{logger: logger}

	cmd := "git-upload-pack " + shellQuote(ep.Path)
	logger.Debug("ssh exec", zap.String("host", ep.Host), zap.String("command", cmd))
	if err := sc.session.Start(cmd); err != nil {
		return nil, multierr.Append(fmt.Errorf("ssh exec %q: %w", cmd, err), sc.Close())
	}
	return sc, nil
}

func (t *SSHTransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	path := t.Config.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("ssh: locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("ssh: load known_hosts: %w", err)
	}
	return cb, nil
}

type sshConn struct {
	client  *ssh.Client
	agent   net.Conn
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

func (c *sshConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *sshConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }

func (c *sshConn) Close() error {
	var err error
	if c.session != nil {
		err = multierr.Append(err, ignoreEOF(c.session.Close()))
	}
	err = multierr.Append(err, c.client.Close())
	return multierr.Append(err, c.agent.Close())
}

func ignoreEOF(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}

// shellQuote single-quotes s for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// zapWriter logs the remote's stderr output line by line.
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Info("remote stderr", zap.String("line", line))
		}
	}
	return len(p), nil
}
