package config

import (
	"bufio"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// SSHHost is one concrete Host alias from an OpenSSH client config file.
type SSHHost struct {
	Alias                 string
	HostName              string
	Port                  string
	User                  string
	IdentityFile          string // ~ expanded
	StrictHostKeyChecking string // yes, no, ask, accept-new; empty when unset
	UserKnownHostsFile    string // ~ expanded
}

// Endpoint is everything needed to dial a remote file's host.
type Endpoint struct {
	Host           string
	Port           string
	User           string
	KeyPath        string
	KnownHostsFile string
	// InsecureHostKey disables host key verification.
	InsecureHostKey bool
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return e.Host + ":" + e.Port
}

// RemotePath is a parsed [user@]host:path argument.
type RemotePath struct {
	User string
	Host string
	Path string
}

// ParseRemotePath recognises scp style arguments. Anything with a slash
// before the first colon is a local path.
func ParseRemotePath(arg string) (RemotePath, bool) {
	colon := strings.IndexByte(arg, ':')
	if colon <= 0 || colon == len(arg)-1 {
		return RemotePath{}, false
	}
	if slash := strings.IndexByte(arg, '/'); slash >= 0 && slash < colon {
		return RemotePath{}, false
	}
	rp := RemotePath{Host: arg[:colon], Path: arg[colon+1:]}
	if at := strings.LastIndexByte(rp.Host, '@'); at >= 0 {
		rp.User, rp.Host = rp.Host[:at], rp.Host[at+1:]
	}
	if rp.Host == "" {
		return RemotePath{}, false
	}
	return rp, true
}

func (r RemotePath) String() string {
	if r.User != "" {
		return r.User + "@" + r.Host + ":" + r.Path
	}
	return r.Host + ":" + r.Path
}

// Resolve fills in an Endpoint for r from the matching ssh config entry,
// falling back to port 22, the current user and ~/.ssh/known_hosts.
func (r RemotePath) Resolve(hosts []SSHHost) Endpoint {
	ep := Endpoint{Host: r.Host, Port: "22", User: r.User}
	if h, ok := MatchSSHHost(hosts, r.Host); ok {
		if h.HostName != "" {
			ep.Host = h.HostName
		}
		if h.Port != "" {
			ep.Port = h.Port
		}
		if ep.User == "" {
			ep.User = h.User
		}
		ep.KeyPath = h.IdentityFile
		ep.KnownHostsFile = h.UserKnownHostsFile
		ep.InsecureHostKey = strings.EqualFold(h.StrictHostKeyChecking, "no")
	}
	if ep.User == "" {
		if u, err := user.Current(); err == nil {
			ep.User = u.Username
		}
	}
	if ep.KnownHostsFile == "" {
		home, _ := os.UserHomeDir()
		ep.KnownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	return ep
}

// MatchSSHHost returns the entry whose alias is exactly alias.
func MatchSSHHost(hosts []SSHHost, alias string) (SSHHost, bool) {
	for _, h := range hosts {
		if h.Alias == alias {
			return h, true
		}
	}
	return SSHHost{}, false
}

func sshConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ssh", "config")
}

// LoadSSHConfig reads ~/.ssh/config. A missing file is not an error.
func LoadSSHConfig() []SSHHost {
	return LoadSSHConfigFrom(sshConfigPath())
}

func LoadSSHConfigFrom(path string) []SSHHost {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()
	return ParseSSHConfig(f)
}

// directives maps a lower-cased keyword to the field it sets.
var directives = map[string]func(h *SSHHost, value, home string){
	"hostname":              func(h *SSHHost, v, _ string) { h.HostName = v },
	"port":                  func(h *SSHHost, v, _ string) { h.Port = v },
	"user":                  func(h *SSHHost, v, _ string) { h.User = v },
	"identityfile":          func(h *SSHHost, v, home string) { h.IdentityFile = expandTilde(v, home) },
	"stricthostkeychecking": func(h *SSHHost, v, _ string) { h.StrictHostKeyChecking = strings.ToLower(v) },
	"userknownhostsfile":    func(h *SSHHost, v, home string) { h.UserKnownHostsFile = expandTilde(v, home) },
}

// ParseSSHConfig parses config content. A Host line may name several
// aliases; each non-wildcard alias becomes its own entry. Match blocks and
// unknown directives are skipped.
func ParseSSHConfig(r io.Reader) []SSHHost {
	home, _ := os.UserHomeDir()

	var (
		hosts   []SSHHost
		aliases []string
		block   SSHHost
		inBlock bool
	)
	flush := func() {
		for _, a := range aliases {
			if isWildcard(a) {
				continue
			}
			h := block
			h.Alias = a
			hosts = append(hosts, h)
		}
		aliases, block = nil, SSHHost{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value := splitSSHConfigLine(line)
		switch key = strings.ToLower(key); key {
		case "host":
			flush()
			aliases = strings.Fields(value)
			inBlock = true
		case "match":
			flush()
			inBlock = false
		default:
			if set, ok := directives[key]; ok && inBlock {
				set(&block, unquote(value), home)
			}
		}
	}
	flush()
	return hosts
}

// splitSSHConfigLine splits "Key value" or "Key=value".
func splitSSHConfigLine(line string) (string, string) {
	i := strings.IndexAny(line, " \t=")
	if i < 0 {
		return line, ""
	}
	key, rest := line[:i], strings.TrimLeft(line[i:], " \t")
	rest = strings.TrimPrefix(rest, "=")
	return key, strings.TrimSpace(rest)
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func isWildcard(alias string) bool {
	return strings.ContainsAny(alias, "*?!")
}

func expandTilde(path, home string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}
