package remote

import (
	"fmt"
	"sort"
	"strings"
)

// Agent is advertised to servers that support the agent capability.
const Agent = "gitsink/0.1.0"

// Capabilities represents a set of upload-pack capabilities. Valued
// capabilities such as "symref=HEAD:refs/heads/main" keep their values.
type Capabilities struct {
	set map[string][]string
}

// ParseCapabilities parses a space-separated capability string.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string][]string)}
	for _, c := range strings.Fields(raw) {
		name, val, _ := strings.Cut(c, "=")
		caps.set[name] = append(caps.set[name], val)
	}
	return caps
}

// Has returns true if the capability is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Values returns every value given for name.
func (c Capabilities) Values(name string) []string {
	return c.set[name]
}

// String returns a sorted space-separated capability string.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k, vals := range c.set {
		for _, v := range vals {
			if v == "" {
				names = append(names, k)
				continue
			}
			names = append(names, k+"="+v)
		}
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// RemoteError is an error reported by the remote, either as an ERR
// pkt-line or on side-band channel 3.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s", e.Message)
}
