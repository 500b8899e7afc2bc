// Package pathscan produces and executes path-kind probe jobs: one HTTP
// request per wordlist candidate against the target's base URL, classified
// by status code with soft-404 suppression via a control-probe signature.
package pathscan

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/shii9/ProbeNio/internal/probe"
)

const (
	userAgent = "ProbeNio/1.0 (+https://github.com/shii9/ProbeNio)"

	// maxBody caps how much of a response is read for length and signature
	// purposes. Control and candidate bodies are capped identically so
	// signature equality stays meaningful.
	maxBody = 128 * 1024
)

// DefaultFoundCodes is the allow-list of statuses that classify a path as
// found when no explicit list is configured.
var DefaultFoundCodes = []int{200, 201, 202, 203, 204, 301, 302, 307, 308}

// ParseFoundCodes parses a comma-separated status-code list, e.g.
// "200,301,403". Codes outside 100-599 invalidate the whole spec.
func ParseFoundCodes(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, probe.Configf("empty status code spec")
	}
	var codes []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, probe.Configf("invalid status code %q", part)
		}
		if c < 100 || c > 599 {
			return nil, probe.Configf("status code %d out of range 100-599", c)
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// Jobs produces one path job per wordlist entry, in wordlist order.
func Jobs(baseURL string, words []string) ([]probe.Job, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, probe.Configf("empty base URL for path scan")
	}
	if len(words) == 0 {
		return nil, probe.Configf("empty wordlist")
	}
	jobs := make([]probe.Job, 0, len(words))
	for i, w := range words {
		jobs = append(jobs, probe.PathJob(i, w))
	}
	return jobs, nil
}

// signature fingerprints the server's answer to a path that cannot exist.
// Two responses with equal status, capped length and body hash are the same
// page as far as the scanner is concerned.
type signature struct {
	status int
	length int64
	hash   uint32
}

func signatureOf(status int, body []byte) signature {
	return signature{status: status, length: int64(len(body)), hash: murmur3.Sum32(body)}
}

// Config shapes a path prober. Zero-value fields fall back to defaults;
// BaseURL is mandatory.
type Config struct {
	BaseURL    string
	UserAgent  string
	FoundCodes []int
	// HeadFirst sends HEAD and falls back to GET on 405 or whenever a body
	// is needed for the soft-404 signature check.
	HeadFirst bool
	Client    *http.Client
}

// Prober fetches one candidate path per attempt and classifies the response.
type Prober struct {
	base      string
	userAgent string
	headFirst bool
	client    *http.Client
	found     map[int]struct{}
	control   *signature
}

// NewProber validates cfg and builds a prober. Redirect statuses are
// classification input here, so the default client never follows them.
func NewProber(cfg Config) (*Prober, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, probe.Configf("empty base URL for path scan")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, probe.Configf("base URL %q is not http(s)", base)
	}
	codes := cfg.FoundCodes
	if len(codes) == 0 {
		codes = DefaultFoundCodes
	}
	found := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		found[c] = struct{}{}
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgent
	}
	return &Prober{
		base:      strings.TrimSuffix(base, "/"),
		userAgent: ua,
		headFirst: cfg.HeadFirst,
		client:    client,
		found:     found,
	}, nil
}

// Calibrate fetches a random-token path that cannot exist and records its
// response signature. Candidates matching the signature exactly are later
// downgraded to not-found, which neutralizes catch-all soft-404 servers.
// Calibration failure disables suppression but never fails the scan.
func (p *Prober) Calibrate(ctx context.Context) error {
	token := randomTokenHex(16)
	status, body, _, err := p.fetch(ctx, http.MethodGet, token)
	if err != nil {
		return fmt.Errorf("control probe %q: %w", token, err)
	}
	sig := signatureOf(status, body)
	p.control = &sig
	return nil
}

// ControlSignature reports the calibrated soft-404 fingerprint, if any, for
// logging.
func (p *Prober) ControlSignature() (status int, length int64, ok bool) {
	if p.control == nil {
		return 0, 0, false
	}
	return p.control.status, p.control.length, true
}

// Probe fetches job.Path and classifies the response.
func (p *Prober) Probe(ctx context.Context, job probe.Job) probe.Outcome {
	start := time.Now()

	method := http.MethodGet
	if p.headFirst {
		method = http.MethodHead
	}
	status, body, length, err := p.fetch(ctx, method, job.Path)
	if err != nil {
		return probe.Outcome{Status: probe.StatusFromErr(err), Cause: err}
	}
	// HEAD answers carry no body: fall back to GET when the server rejects
	// the method or when the signature check needs bytes to compare.
	if method == http.MethodHead && (status == http.StatusMethodNotAllowed || p.needsBody(status)) {
		method = http.MethodGet
		status, body, length, err = p.fetch(ctx, method, job.Path)
		if err != nil {
			return probe.Outcome{Status: probe.StatusFromErr(err), Cause: err}
		}
	}

	o := probe.Outcome{
		Status:     probe.StatusSuccess,
		Class:      p.classify(status),
		HTTPStatus: status,
		BodyLength: length,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	if method == http.MethodGet && p.control != nil && signatureOf(status, body) == *p.control && o.Class != probe.ClassNotFound {
		o.Class = probe.ClassNotFound
	}
	return o
}

// needsBody reports whether classification of status depends on comparing
// the body against the control signature.
func (p *Prober) needsBody(status int) bool {
	return p.control != nil && p.control.status == status
}

func (p *Prober) classify(status int) string {
	if _, ok := p.found[status]; ok {
		return probe.ClassFound
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return probe.ClassForbidden
	case status >= 500:
		return probe.ClassServerError
	default:
		return probe.ClassNotFound
	}
}

// fetch performs one request. For GET the returned length is the capped body
// size; for HEAD it is the declared Content-Length when the server sent one.
func (p *Prober) fetch(ctx context.Context, method, candidate string) (int, []byte, int64, error) {
	url := p.base + "/" + strings.TrimPrefix(candidate, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	if method == http.MethodHead {
		length := resp.ContentLength
		if length < 0 {
			length = 0
		}
		return resp.StatusCode, nil, length, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, int64(len(body)), nil
}

func randomTokenHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
