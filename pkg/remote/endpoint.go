package remote

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultGitPort = 9418
	DefaultSSHPort = 22
)

// Endpoint identifies a remote repository reachable by upload-pack.
type Endpoint struct {
	Raw    string
	Scheme string // "git" or "ssh"
	User   string
	Host   string
	Port   int
	Path   string
}

// Addr returns host:port for dialing.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses a remote URL into a canonical endpoint.
//
// Supported inputs include:
// - git://host[:port]/path/repo.git
// - ssh://[user@]host[:port]/path/repo.git
// - [user@]host:path/repo.git (scp-like ssh)
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("remote URL is required")
	}

	if !strings.Contains(raw, "://") {
		return parseSCPLike(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse remote URL: %w", err)
	}
	ep := Endpoint{Raw: raw, Scheme: u.Scheme, Host: u.Hostname(), Path: u.Path}
	switch u.Scheme {
	case "git":
		ep.Port = DefaultGitPort
	case "ssh", "git+ssh", "ssh+git":
		ep.Scheme = "ssh"
		ep.Port = DefaultSSHPort
		if u.User != nil {
			ep.User = u.User.Username()
		}
	default:
		return Endpoint{}, fmt.Errorf("unsupported remote scheme %q: only git:// and ssh:// are implemented", u.Scheme)
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("remote URL must include a host")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid remote port %q", p)
		}
		ep.Port = port
	}
	if ep.Path == "" || ep.Path == "/" {
		return Endpoint{}, fmt.Errorf("remote URL must include a repository path")
	}
	return ep, nil
}

func parseSCPLike(raw string) (Endpoint, error) {
	hostPart, path, ok := strings.Cut(raw, ":")
	if !ok || strings.Contains(hostPart, "/") || path == "" {
		return Endpoint{}, fmt.Errorf("unsupported remote %q: only git:// and ssh:// are implemented", raw)
	}
	ep := Endpoint{Raw: raw, Scheme: "ssh", Port: DefaultSSHPort, Path: path}
	if user, host, ok := strings.Cut(hostPart, "@"); ok {
		ep.User, ep.Host = user, host
	} else {
		ep.Host = hostPart
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("remote URL must include a host")
	}
	return ep, nil
}

var targetExp = regexp.MustCompile(`([^/.]*)(\.git)?$`)

// TargetName derives the clone directory name from a repository path:
// the last path element without a trailing ".git".
func TargetName(path string) (string, error) {
	m := targetExp.FindStringSubmatch(strings.TrimRight(path, "/"))
	if m == nil || m[1] == "" {
		return "", fmt.Errorf("cannot derive a directory name from %q", path)
	}
	return m[1], nil
}
