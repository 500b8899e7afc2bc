// Package portscan produces and executes port-kind probe jobs: one TCP
// connect per candidate port, classified as open, closed or filtered.
package portscan

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shii9/ProbeNio/internal/probe"
)

// DefaultPorts is the common-services set scanned when no explicit range or
// list is configured.
var DefaultPorts = []int{21, 22, 23, 25, 53, 80, 110, 443, 993, 995, 1723, 3306, 3389, 5900, 8080, 8443}

// ParsePortSpec parses a comma-separated list of ports and inclusive ranges,
// e.g. "22,80,8000-8100", into a sorted, deduplicated port list. Malformed
// or out-of-range entries make the whole spec invalid.
func ParsePortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, probe.Configf("empty port spec")
	}

	seen := map[int]struct{}{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, probe.Configf("empty entry in port spec %q", spec)
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, probe.Configf("reversed port range %q", part)
			}
			for p := start; p <= end; p++ {
				seen[p] = struct{}{}
			}
			continue
		}
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		seen[p] = struct{}{}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, probe.Configf("invalid port %q", s)
	}
	if p < 1 || p > 65535 {
		return 0, probe.Configf("port %d out of range 1-65535", p)
	}
	return p, nil
}

// Jobs produces one port job per entry against the resolved IP. A target
// without a resolved IP yields no jobs and ErrUnresolvable; the phase is
// reported unresolvable instead of scanned.
func Jobs(ip string, ports []int) ([]probe.Job, error) {
	if ip == "" {
		return nil, probe.ErrUnresolvable
	}
	if len(ports) == 0 {
		return nil, probe.Configf("empty port list")
	}
	jobs := make([]probe.Job, 0, len(ports))
	for i, p := range ports {
		if p < 1 || p > 65535 {
			return nil, probe.Configf("port %d out of range 1-65535", p)
		}
		jobs = append(jobs, probe.PortJob(i, p))
	}
	return jobs, nil
}

// Prober dials one TCP connection per attempt. The Dial field is injectable
// for tests; it defaults to a plain net.Dialer bound by the attempt context.
type Prober struct {
	Host string
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewProber(host string) *Prober {
	d := &net.Dialer{}
	return &Prober{Host: host, Dial: d.DialContext}
}

// Probe classifies the candidate port: open on a completed handshake (with
// connect latency), closed on refusal, filtered on timeout.
func (p *Prober) Probe(ctx context.Context, job probe.Job) probe.Outcome {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(job.Port))
	start := time.Now()
	conn, err := p.Dial(ctx, "tcp", addr)
	if err == nil {
		latency := time.Since(start)
		conn.Close()
		return probe.Outcome{
			Status:    probe.StatusSuccess,
			Class:     probe.ClassOpen,
			LatencyMS: latency.Milliseconds(),
		}
	}
	return classifyDialError(err)
}

func classifyDialError(err error) probe.Outcome {
	o := probe.Outcome{Status: probe.StatusFromErr(err), Cause: err}
	switch o.Status {
	case probe.StatusTimeout:
		o.Class = probe.ClassFiltered
	case probe.StatusFailure:
		if isRefused(err) {
			o.Class = probe.ClassClosed
		}
	}
	return o
}

func isRefused(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ECONNREFUSED {
		return true
	}
	return strings.Contains(err.Error(), "refused")
}
