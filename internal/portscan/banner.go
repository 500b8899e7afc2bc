package portscan

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// bannerCap bounds how much a service may send before the grab gives up.
const bannerCap = 2048

// Banner is the post-scan enrichment of one open port.
type Banner struct {
	Port    int    `json:"port"`
	Service string `json:"service,omitempty"`
	Text    string `json:"banner,omitempty"`
}

// ServiceName returns the conventional name for a well-known port, or "".
func ServiceName(port int) string {
	switch port {
	case 20, 21:
		return "ftp"
	case 22:
		return "ssh"
	case 23:
		return "telnet"
	case 25, 465, 587:
		return "smtp"
	case 53:
		return "dns"
	case 80:
		return "http"
	case 110:
		return "pop3"
	case 143:
		return "imap"
	case 443:
		return "https"
	case 993:
		return "imaps"
	case 995:
		return "pop3s"
	case 1723:
		return "pptp"
	case 3306:
		return "mysql"
	case 3389:
		return "rdp"
	case 5432:
		return "postgres"
	case 5900:
		return "vnc"
	case 8000, 8080:
		return "http-alt"
	case 8443:
		return "https-alt"
	default:
		return ""
	}
}

func webPort(port int) bool {
	switch port {
	case 80, 8000, 8008, 8080, 8081:
		return true
	}
	return false
}

// GrabBanners runs one banner grab per open port with bounded concurrency.
// Best-effort by contract: a silent or unreadable service simply yields an
// empty banner text, never an error.
func GrabBanners(ctx context.Context, host string, ports []int, timeout time.Duration) []Banner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	banners := make([]Banner, len(ports))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i, port := range ports {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			banners[i] = Banner{
				Port:    port,
				Service: ServiceName(port),
				Text:    grabBanner(ctx, host, port, timeout),
			}
		}(i, port)
	}
	wg.Wait()
	return banners
}

// grabBanner reads the first line a service offers. Plain web ports get a
// HEAD request line first since HTTP servers say nothing unprompted;
// everything else is a passive read.
func grabBanner(ctx context.Context, host string, port int, timeout time.Duration) string {
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return ""
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if webPort(port) {
		fmt.Fprintf(conn, "HEAD / HTTP/1.0\r\nHost: %s\r\nUser-Agent: ProbeNio/1.0\r\nConnection: close\r\n\r\n", host)
	}

	buf := make([]byte, bannerCap)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}
	line := string(buf[:n])
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	line = strings.ToValidUTF8(strings.TrimSpace(line), "")
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}
