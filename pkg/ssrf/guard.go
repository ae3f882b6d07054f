// Package ssrf validates outbound targets against internal, reserved and
// cloud-metadata address space before any request leaves the engine.
package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

var ErrBlocked = errors.New("target blocked by SSRF guard")

// BlockedError names the rejected target and the rule it hit.
type BlockedError struct {
	Target string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("ssrf: %s: %s", e.Target, e.Reason)
}

func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}

var localhostAliases = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
	"0.0.0.0":   {},
}

var metadataHosts = map[string]struct{}{
	"metadata.google.internal": {},
	"metadata.goog":            {},
	"metadata":                 {},
}

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Validator is the capability consumed by components that make outbound calls.
type Validator interface {
	Check(ctx context.Context, target string) error
}

type Guard struct {
	resolver Resolver
}

type Option func(*Guard)

func WithResolver(resolver Resolver) Option {
	return func(g *Guard) {
		g.resolver = resolver
	}
}

func NewGuard(opts ...Option) *Guard {
	guard := &Guard{resolver: net.DefaultResolver}

	for _, opt := range opts {
		opt(guard)
	}

	return guard
}

// Validate reports whether target may be contacted, with the reason when it may not.
// target is either an absolute http(s) URL or a bare host name or address.
func (g *Guard) Validate(ctx context.Context, target string) (bool, string) {
	err := g.Check(ctx, target)
	if err == nil {
		return true, ""
	}

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return false, blocked.Reason
	}

	return false, err.Error()
}

// Check is Validate in error form. Rejections wrap ErrBlocked.
func (g *Guard) Check(ctx context.Context, target string) error {
	host, err := extractHost(target)
	if err != nil {
		return &BlockedError{Target: target, Reason: err.Error()}
	}

	normalized := strings.TrimSuffix(strings.ToLower(host), ".")

	if _, ok := localhostAliases[normalized]; ok {
		return &BlockedError{Target: target, Reason: "localhost is not allowed"}
	}

	if _, ok := metadataHosts[normalized]; ok {
		return &BlockedError{Target: target, Reason: "cloud metadata host is not allowed"}
	}

	addrs, err := g.resolve(ctx, normalized)
	if err != nil {
		return &BlockedError{Target: target, Reason: err.Error()}
	}

	for _, addr := range addrs {
		if entry, blocked := blockedRange(addr); blocked {
			return &BlockedError{
				Target: target,
				Reason: fmt.Sprintf("address %s is in blocked range %s (%s)", addr, entry, entry.label),
			}
		}
	}

	return nil
}

// DialControl rejects connections to blocked addresses at connect time, closing
// the window between validation and a second DNS answer.
func (g *Guard) DialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return &BlockedError{Target: address, Reason: "invalid dial address"}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return &BlockedError{Target: address, Reason: "dial address is not an IP"}
	}

	if entry, blocked := blockedRange(addr.WithZone("").Unmap()); blocked {
		return &BlockedError{
			Target: address,
			Reason: fmt.Sprintf("address %s is in blocked range %s (%s)", addr, entry, entry.label),
		}
	}

	return nil
}

func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr.WithZone("")}, nil
	}

	for _, network := range []string{"ip4", "ip6"} {
		addrs, err := g.resolver.LookupNetIP(ctx, network, host)
		if err != nil || len(addrs) == 0 {
			continue
		}

		// The resolver may hand back IPv4 answers in mapped form.
		if network == "ip4" {
			for i, addr := range addrs {
				addrs[i] = addr.Unmap()
			}
		}

		return addrs, nil
	}

	return nil, fmt.Errorf("unable to resolve host %q", host)
}

func extractHost(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("empty target")
	}

	if !strings.Contains(target, "://") {
		return strings.Trim(target, "[]"), nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("scheme %q is not allowed", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", errors.New("URL has no host")
	}

	return strings.Trim(host, "[]"), nil
}
