// Package resolve turns the raw target argument into a scan-ready identity:
// parsed host and port, resolved addresses, reverse DNS names, the canonical
// base URL and what an initial reachability check learns about the web
// server behind it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/shii9/ProbeNio/internal/probe"
)

const userAgent = "ProbeNio/1.0 (+https://github.com/shii9/ProbeNio)"

// Target is the parsed and resolved scan subject. IP stays empty when
// resolution fails; the port phase treats that as fatal, web phases keep
// going against BaseURL.
type Target struct {
	Input      string   `json:"input"`
	Host       string   `json:"host"`
	Port       int      `json:"port,omitempty"`
	Scheme     string   `json:"scheme,omitempty"`
	IP         string   `json:"ip,omitempty"`
	IPs        []string `json:"ips,omitempty"`
	ReverseDNS []string `json:"reverse_dns,omitempty"`
	BaseURL    string   `json:"base_url"`
}

// Parse normalizes the accepted target forms: full URL, host:port, bare
// hostname or IP literal. Without an explicit scheme the base URL assumes
// https; CheckWeb downgrades to http when only that answers.
func Parse(input string) (Target, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Target{}, probe.Configf("empty target")
	}
	t := Target{Input: raw}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, probe.Configf("invalid target URL %q: %v", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return Target{}, probe.Configf("unsupported scheme %q in target", u.Scheme)
		}
		t.Scheme = u.Scheme
		t.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil || port < 1 || port > 65535 {
				return Target{}, probe.Configf("invalid port %q in target", p)
			}
			t.Port = port
		}
	} else if host, portStr, err := net.SplitHostPort(raw); err == nil {
		port, perr := strconv.Atoi(portStr)
		if perr != nil || port < 1 || port > 65535 {
			return Target{}, probe.Configf("invalid port %q in target", portStr)
		}
		t.Host = host
		t.Port = port
	} else {
		t.Host = strings.TrimSuffix(raw, "/")
	}

	if t.Host == "" {
		return Target{}, probe.Configf("no host in target %q", raw)
	}
	t.BaseURL = baseURL(t)
	return t, nil
}

func baseURL(t Target) string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := t.Host
	if t.Port != 0 && !defaultPort(scheme, t.Port) {
		host = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

func defaultPort(scheme string, port int) bool {
	return (scheme == "http" && port == 80) || (scheme == "https" && port == 443)
}

// DefaultUsername derives the platform-probe identity from the target host:
// the first DNS label, with a leading www stripped. IP literals yield no
// usable identity.
func DefaultUsername(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	return label
}

// Resolver performs forward and reverse lookups. Lookup functions are
// injectable for tests; Server switches forward lookups to direct A/AAAA
// queries against that DNS server instead of the system resolver.
type Resolver struct {
	Server     string
	LookupIP   func(ctx context.Context, host string) ([]net.IP, error)
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// NewResolver builds a resolver; server may be empty for the system default,
// or "host" / "host:port" for direct queries.
func NewResolver(server string) *Resolver {
	if server != "" && !strings.Contains(server, ":") {
		server += ":53"
	}
	return &Resolver{
		Server: server,
		LookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
		LookupAddr: func(ctx context.Context, addr string) ([]string, error) {
			return net.DefaultResolver.LookupAddr(ctx, addr)
		},
	}
}

// Resolve fills the target's address fields. The primary IP prefers IPv4.
// Failure returns a ResolutionError and leaves IP empty; reverse lookup
// failures are silent, PTR names are a bonus.
func (r *Resolver) Resolve(ctx context.Context, t *Target) error {
	if ip := net.ParseIP(t.Host); ip != nil {
		t.IP = t.Host
		t.IPs = []string{t.Host}
	} else {
		ips, err := r.forward(ctx, t.Host)
		if err == nil && len(ips) == 0 {
			err = errors.New("no addresses returned")
		}
		if err != nil {
			return &probe.ResolutionError{Host: t.Host, Err: err}
		}
		for _, ip := range ips {
			t.IPs = append(t.IPs, ip.String())
		}
		t.IP = primaryIP(ips)
	}

	if names, err := r.LookupAddr(ctx, t.IP); err == nil {
		for _, n := range names {
			t.ReverseDNS = append(t.ReverseDNS, strings.TrimSuffix(n, "."))
		}
	}
	return nil
}

func (r *Resolver) forward(ctx context.Context, host string) ([]net.IP, error) {
	if r.Server == "" {
		return r.LookupIP(ctx, host)
	}
	return r.queryDirect(ctx, host)
}

// queryDirect asks the configured DNS server for A and AAAA records. One
// answered record type is enough; both failing is a resolution failure.
func (r *Resolver) queryDirect(ctx context.Context, host string) ([]net.IP, error) {
	c := new(mdns.Client)
	var ips []net.IP
	var lastErr error

	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		msg := new(mdns.Msg)
		msg.SetQuestion(mdns.Fqdn(host), qtype)
		in, _, err := c.ExchangeContext(ctx, msg, r.Server)
		if err != nil {
			lastErr = err
			continue
		}
		for _, ans := range in.Answer {
			switch rr := ans.(type) {
			case *mdns.A:
				ips = append(ips, rr.A)
			case *mdns.AAAA:
				ips = append(ips, rr.AAAA)
			}
		}
	}
	if len(ips) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("query %s: %w", r.Server, lastErr)
		}
		return nil, fmt.Errorf("no A/AAAA records from %s", r.Server)
	}
	return ips, nil
}

func primaryIP(ips []net.IP) string {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip.String()
		}
	}
	if len(ips) > 0 {
		return ips[0].String()
	}
	return ""
}

// interestingHeaders is the response-header subset worth reporting from the
// reachability check.
var interestingHeaders = []string{
	"X-Powered-By",
	"X-Frame-Options",
	"Content-Type",
	"Content-Length",
	"Cache-Control",
	"X-Content-Type-Options",
}

// WebIdentity is what the initial GET against the base URL reveals.
type WebIdentity struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Server    string            `json:"server,omitempty"`
	PoweredBy string            `json:"powered_by,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// CheckWeb confirms the base URL answers and captures identity headers.
// When the scheme was assumed rather than given, a dead https is retried as
// http and the target's base URL is rewritten to whichever worked.
func CheckWeb(ctx context.Context, client *http.Client, t *Target) (*WebIdentity, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	candidates := []string{t.BaseURL}
	if t.Scheme == "" && strings.HasPrefix(t.BaseURL, "https://") {
		candidates = append(candidates, "http://"+strings.TrimPrefix(t.BaseURL, "https://"))
	}

	var lastErr error
	for _, u := range candidates {
		id, err := fetchIdentity(ctx, client, u)
		if err != nil {
			lastErr = err
			continue
		}
		t.BaseURL = u
		return id, nil
	}
	return nil, lastErr
}

func fetchIdentity(ctx context.Context, client *http.Client, rawURL string) (*WebIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	id := &WebIdentity{
		URL:       rawURL,
		Status:    resp.StatusCode,
		Server:    resp.Header.Get("Server"),
		PoweredBy: resp.Header.Get("X-Powered-By"),
		Headers:   map[string]string{},
	}
	for _, h := range interestingHeaders {
		if v := resp.Header.Get(h); v != "" {
			id.Headers[h] = v
		}
	}
	return id, nil
}
