package target

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
)

// Target identifies the remote resource being authenticated against. It is an
// immutable value: construct it with New, Parse or FromProperties.
type Target struct {
	Scheme string
	Host   string
	Port   int    // zero when not specified
	Path   string // without leading or trailing slash
}

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

var defaultPorts = map[string]int{
	"http":  80,
	"https": 443,
}

// New constructs and validates a Target.
func New(scheme, host string, port int, path string) (Target, error) {
	t := Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   strings.Trim(path, "/"),
	}

	if err := t.Validate(); err != nil {
		return Target{}, err
	}

	return t, nil
}

// Parse creates a Target from an absolute URL such as
// "https://dev.azure.com/org/project/_git/repo".
func Parse(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, autherr.InvalidArgument("target", fmt.Sprintf("cannot parse %q: %v", raw, err))
	}

	if !u.IsAbs() || u.Host == "" {
		return Target{}, autherr.InvalidArgument("target", fmt.Sprintf("%q must be an absolute URL with a host", raw))
	}

	port, err := parsePort(u.Port())
	if err != nil {
		return Target{}, err
	}

	return New(u.Scheme, u.Hostname(), port, u.Path)
}

// FromProperties creates a Target from the attributes of the git credential
// protocol. The host attribute may carry a port.
func FromProperties(protocol, host, path string) (Target, error) {
	hostname := host
	port := 0

	if h, p, err := net.SplitHostPort(host); err == nil {
		hostname = h
		port, err = parsePort(p)
		if err != nil {
			return Target{}, err
		}
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		// IPv6 literal without a port
		hostname = host[1 : len(host)-1]
	}

	return New(protocol, hostname, port, path)
}

func parsePort(p string) (int, error) {
	if p == "" {
		return 0, nil
	}

	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, autherr.InvalidArgument("port", fmt.Sprintf("%q is not a valid port", p))
	}

	return port, nil
}

// Validate checks that the target has a resolvable scheme and host.
func (t Target) Validate() error {
	if t.Scheme == "" {
		return autherr.InvalidArgument("scheme", "must not be empty")
	}
	if !schemePattern.MatchString(t.Scheme) {
		return autherr.InvalidArgument("scheme", fmt.Sprintf("%q is not a valid URI scheme", t.Scheme))
	}
	if t.Host == "" {
		return autherr.InvalidArgument("host", "must not be empty")
	}
	if strings.ContainsAny(t.Host, "/?#@[] \t\r\n") {
		return autherr.InvalidArgument("host", fmt.Sprintf("%q contains illegal characters", t.Host))
	}
	if t.Port < 0 || t.Port > 65535 {
		return autherr.InvalidArgument("port", fmt.Sprintf("%d is out of range", t.Port))
	}

	return nil
}

// Authority returns host[:port], omitting the port when it is the default for
// the scheme.
func (t Target) Authority() string {
	host := t.Host
	if strings.Contains(host, ":") {
		// IPv6 literal
		host = "[" + host + "]"
	}

	if t.Port == 0 || defaultPorts[strings.ToLower(t.Scheme)] == t.Port {
		return host
	}

	return host + ":" + strconv.Itoa(t.Port)
}

// URL returns the target as an absolute URL.
func (t Target) URL() *url.URL {
	u := &url.URL{
		Scheme: t.Scheme,
		Host:   t.Authority(),
	}
	if t.Path != "" {
		u.Path = "/" + t.Path
	}
	return u
}

// Origin returns scheme://authority without any path.
func (t Target) Origin() string {
	return t.Scheme + "://" + t.Authority()
}

func (t Target) String() string {
	return t.URL().String()
}
