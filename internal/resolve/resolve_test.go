package resolve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/likexian/gokit/assert"

	"github.com/shii9/ProbeNio/internal/probe"
)

func TestParse(t *testing.T) {
	cases := map[string]Target{
		"example.com":                  {Host: "example.com", BaseURL: "https://example.com"},
		"example.com/":                 {Host: "example.com", BaseURL: "https://example.com"},
		"example.com:8080":             {Host: "example.com", Port: 8080, BaseURL: "https://example.com:8080"},
		"http://example.com":           {Host: "example.com", Scheme: "http", BaseURL: "http://example.com"},
		"https://example.com:8443/app": {Host: "example.com", Scheme: "https", Port: 8443, BaseURL: "https://example.com:8443"},
		"http://example.com:80":        {Host: "example.com", Scheme: "http", Port: 80, BaseURL: "http://example.com"},
		"192.0.2.7":                    {Host: "192.0.2.7", BaseURL: "https://192.0.2.7"},
		"192.0.2.7:8080":               {Host: "192.0.2.7", Port: 8080, BaseURL: "https://192.0.2.7:8080"},
		"::1":                          {Host: "::1", BaseURL: "https://[::1]"},
	}
	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			got, err := Parse(input)
			assert.Nil(t, err)
			assert.Equal(t, got.Host, want.Host)
			assert.Equal(t, got.Port, want.Port)
			assert.Equal(t, got.Scheme, want.Scheme)
			assert.Equal(t, got.BaseURL, want.BaseURL)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "ftp://example.com", "example.com:99999", "https://"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.NotNil(t, err)
		})
	}
}

func TestDefaultUsername(t *testing.T) {
	cases := map[string]string{
		"example.com":     "example",
		"www.example.com": "example",
		"blog.corp.net":   "blog",
		"192.0.2.7":       "",
		"::1":             "",
	}
	for host, want := range cases {
		assert.Equal(t, DefaultUsername(host), want, "host %q", host)
	}
}

func TestResolvePrefersIPv4(t *testing.T) {
	r := NewResolver("")
	r.LookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("2001:db8::1"), net.ParseIP("192.0.2.10")}, nil
	}
	r.LookupAddr = func(ctx context.Context, addr string) ([]string, error) {
		assert.Equal(t, addr, "192.0.2.10")
		return []string{"target.example.com."}, nil
	}

	target, err := Parse("example.com")
	assert.Nil(t, err)
	assert.Nil(t, r.Resolve(context.Background(), &target))
	assert.Equal(t, target.IP, "192.0.2.10")
	assert.Equal(t, target.IPs, []string{"2001:db8::1", "192.0.2.10"})
	assert.Equal(t, target.ReverseDNS, []string{"target.example.com"})
}

func TestResolveFailure(t *testing.T) {
	r := NewResolver("")
	r.LookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return nil, errors.New("NXDOMAIN")
	}
	r.LookupAddr = func(ctx context.Context, addr string) ([]string, error) {
		t.Fatal("reverse lookup must not run without a primary IP")
		return nil, nil
	}

	target, err := Parse("nonexistent.invalid")
	assert.Nil(t, err)
	err = r.Resolve(context.Background(), &target)
	assert.NotNil(t, err)

	var rerr *probe.ResolutionError
	assert.True(t, errors.As(err, &rerr))
	assert.Equal(t, rerr.Host, "nonexistent.invalid")
	assert.Equal(t, target.IP, "")
}

func TestResolveIPLiteralSkipsLookup(t *testing.T) {
	r := NewResolver("")
	r.LookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		t.Fatal("forward lookup must not run for an IP literal")
		return nil, nil
	}
	r.LookupAddr = func(ctx context.Context, addr string) ([]string, error) {
		return nil, errors.New("no PTR")
	}

	target, err := Parse("192.0.2.7")
	assert.Nil(t, err)
	assert.Nil(t, r.Resolve(context.Background(), &target))
	assert.Equal(t, target.IP, "192.0.2.7")
	assert.Equal(t, len(target.ReverseDNS), 0)
}

func TestNewResolverAppendsDNSPort(t *testing.T) {
	assert.Equal(t, NewResolver("1.1.1.1").Server, "1.1.1.1:53")
	assert.Equal(t, NewResolver("1.1.1.1:5353").Server, "1.1.1.1:5353")
	assert.Equal(t, NewResolver("").Server, "")
}

func TestCheckWebCapturesIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.24")
		w.Header().Set("X-Powered-By", "PHP/8.2")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte("<html>home</html>"))
	}))
	defer srv.Close()

	target, err := Parse(srv.URL)
	assert.Nil(t, err)

	id, err := CheckWeb(context.Background(), srv.Client(), &target)
	assert.Nil(t, err)
	assert.Equal(t, id.Status, 200)
	assert.Equal(t, id.Server, "nginx/1.24")
	assert.Equal(t, id.PoweredBy, "PHP/8.2")
	assert.Equal(t, id.Headers["X-Frame-Options"], "DENY")
	assert.Equal(t, id.Headers["Cache-Control"], "no-store")
	assert.Equal(t, target.BaseURL, srv.URL)
}

// A bare host:port target assumes https; when only http answers the check
// must downgrade the base URL instead of failing.
func TestCheckWebFallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain http"))
	}))
	defer srv.Close()

	hostPort := strings.TrimPrefix(srv.URL, "http://")
	target, err := Parse(hostPort)
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(target.BaseURL, "https://"))

	id, err := CheckWeb(context.Background(), &http.Client{}, &target)
	assert.Nil(t, err)
	assert.Equal(t, id.Status, 200)
	assert.Equal(t, target.BaseURL, srv.URL)
}

func TestCheckWebUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	target, err := Parse(srv.URL)
	assert.Nil(t, err)
	_, err = CheckWeb(context.Background(), &http.Client{}, &target)
	assert.NotNil(t, err)
}
