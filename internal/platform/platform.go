// Package platform probes a catalogue of external platforms for accounts
// matching the target's identity. The catalogue is data: each entry names the
// platform, a profile URL template and the existence predicate (expected
// status, optionally "not found" content markers for platforms that answer
// 200 for everything).
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shii9/ProbeNio/internal/probe"
)

const (
	userAgent = "ProbeNio/1.0 (+https://github.com/shii9/ProbeNio)"

	// maxBody caps the response bytes searched for markers. Profile pages of
	// the big platforms fit comfortably under this.
	maxBody = 512 * 1024

	placeholder = "{}"
)

// ErrNoCatalogue aborts the platform phase when the catalogue loads to zero
// usable entries.
var ErrNoCatalogue = errors.New("platform catalogue has no entries")

// Entry is one platform rule. URL must contain the {} placeholder; the
// username is substituted in. A response proves an account exists when its
// status equals Status (default 200) and the body contains none of the
// Markers, case-insensitively.
type Entry struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Status  int      `yaml:"status,omitempty"`
	Markers []string `yaml:"markers,omitempty"`
}

// Catalogue is the loadable platform set.
type Catalogue struct {
	Platforms []Entry `yaml:"platforms"`
}

func (e Entry) expectedStatus() int {
	if e.Status == 0 {
		return http.StatusOK
	}
	return e.Status
}

// Matches applies the existence predicate to one response.
func (e Entry) Matches(status int, body string) bool {
	if status != e.expectedStatus() {
		return false
	}
	lower := strings.ToLower(body)
	for _, m := range e.Markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}
	return true
}

func (c Catalogue) validate() error {
	if len(c.Platforms) == 0 {
		return ErrNoCatalogue
	}
	seen := map[string]struct{}{}
	for _, e := range c.Platforms {
		if e.Name == "" {
			return probe.Configf("catalogue entry without a name")
		}
		if _, dup := seen[e.Name]; dup {
			return probe.Configf("duplicate catalogue entry %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		if !strings.Contains(e.URL, placeholder) {
			return probe.Configf("catalogue entry %q: url %q has no %s placeholder", e.Name, e.URL, placeholder)
		}
		if s := e.expectedStatus(); s < 100 || s > 599 {
			return probe.Configf("catalogue entry %q: status %d out of range", e.Name, s)
		}
	}
	return nil
}

// defaultCatalogueYAML is the embedded catalogue. Marker strings are the
// platforms' literal "no such account" phrases; entries without markers rely
// on the status alone.
const defaultCatalogueYAML = `
platforms:
  - name: Facebook
    url: "https://www.facebook.com/{}"
    markers:
      - "content-login-button"
      - "login_form"
  - name: Instagram
    url: "https://www.instagram.com/{}/"
    markers:
      - "The link you followed may be broken"
  - name: Twitter
    url: "https://twitter.com/{}"
    markers:
      - "This account doesn't exist"
  - name: GitHub
    url: "https://github.com/{}"
    markers:
      - "This is not the web page you are looking for"
  - name: YouTube
    url: "https://www.youtube.com/@{}"
    markers:
      - "This channel doesn't exist"
  - name: Reddit
    url: "https://www.reddit.com/user/{}"
    markers:
      - "Sorry, nobody on Reddit goes by that name"
  - name: Pinterest
    url: "https://www.pinterest.com/{}/"
    markers:
      - "Sorry, we couldn't find"
  - name: TikTok
    url: "https://www.tiktok.com/@{}"
    markers:
      - "Couldn't find this account"
  - name: LinkedIn
    url: "https://www.linkedin.com/in/{}"
    markers:
      - "This page doesn't exist"
  - name: Twitch
    url: "https://www.twitch.tv/{}"
    markers:
      - "the page you are looking for is unavailable"
  - name: Telegram
    url: "https://t.me/{}"
    markers:
      - "If you have Telegram, you can contact"
  - name: VK
    url: "https://vk.com/{}"
    markers:
      - "Error 404"
  - name: Medium
    url: "https://medium.com/@{}"
    markers:
      - "404"
  - name: DeviantArt
    url: "https://{}.deviantart.com"
    markers:
      - "404"
  - name: Spotify
    url: "https://open.spotify.com/user/{}"
    markers:
      - "Page not found"
`

// Default returns the embedded catalogue.
func Default() Catalogue {
	var c Catalogue
	if err := yaml.Unmarshal([]byte(defaultCatalogueYAML), &c); err != nil {
		panic("platform: embedded catalogue: " + err.Error())
	}
	return c
}

// Load reads a catalogue YAML file. An empty path returns the embedded
// default.
func Load(path string) (Catalogue, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("open catalogue: %w", err)
	}
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return Catalogue{}, err
	}
	return c, nil
}

// Jobs produces one platform job per catalogue entry with the username
// substituted into the URL template, in catalogue order.
func Jobs(c Catalogue, username string) ([]probe.Job, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, probe.Configf("empty username for platform probing")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	jobs := make([]probe.Job, 0, len(c.Platforms))
	for i, e := range c.Platforms {
		u := strings.ReplaceAll(e.URL, placeholder, url.PathEscape(username))
		jobs = append(jobs, probe.PlatformJob(i, e.Name, u))
	}
	return jobs, nil
}

// Prober fetches one profile URL per attempt and applies the entry's
// existence predicate. Redirects are followed: several platforms bounce
// through consent or canonical-URL hops before the profile answers.
type Prober struct {
	entries   map[string]Entry
	client    *http.Client
	userAgent string
}

// NewProber builds a prober over the catalogue. A nil client gets the
// default one.
func NewProber(c Catalogue, client *http.Client) (*Prober, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(c.Platforms))
	for _, e := range c.Platforms {
		entries[e.Name] = e
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{entries: entries, client: client, userAgent: userAgent}, nil
}

// Probe fetches the job's profile URL and classifies the account as exists
// or not-found.
func (p *Prober) Probe(ctx context.Context, job probe.Job) probe.Outcome {
	entry, ok := p.entries[job.Platform.Name]
	if !ok {
		err := &probe.ProtocolError{Reason: fmt.Sprintf("job references unknown platform %q", job.Platform.Name)}
		return probe.Outcome{Status: probe.StatusError, Cause: err}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.Platform.URL, nil)
	if err != nil {
		return probe.Outcome{Status: probe.StatusError, Cause: err}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return probe.Outcome{Status: probe.StatusFromErr(err), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return probe.Outcome{Status: probe.StatusFromErr(err), Cause: err}
	}

	class := probe.ClassNotFound
	if entry.Matches(resp.StatusCode, string(body)) {
		class = probe.ClassExists
	}
	return probe.Outcome{
		Status:     probe.StatusSuccess,
		Class:      class,
		HTTPStatus: resp.StatusCode,
		BodyLength: int64(len(body)),
		LatencyMS:  time.Since(start).Milliseconds(),
	}
}
