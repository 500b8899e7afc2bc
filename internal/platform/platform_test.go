package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/likexian/gokit/assert"

	"github.com/shii9/ProbeNio/internal/probe"
)

func TestDefaultCatalogue(t *testing.T) {
	c := Default()
	assert.Equal(t, len(c.Platforms), 15)
	assert.Nil(t, c.validate())

	names := map[string]bool{}
	for _, e := range c.Platforms {
		names[e.Name] = true
		assert.True(t, strings.Contains(e.URL, "{}"), "entry %q has no placeholder", e.Name)
	}
	assert.True(t, names["GitHub"])
	assert.True(t, names["Spotify"])
}

func TestEntryMatches(t *testing.T) {
	e := Entry{Name: "X", URL: "https://x.test/{}", Markers: []string{"This account doesn't exist"}}

	cases := map[string]struct {
		status int
		body   string
		want   bool
	}{
		"status and clean body": {200, "<html>profile</html>", true},
		"marker present":        {200, "<html>this account DOESN'T exist</html>", false},
		"wrong status":          {404, "<html>profile</html>", false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, e.Matches(c.status, c.body), c.want)
		})
	}
}

func TestEntryStatusOnlyRule(t *testing.T) {
	e := Entry{Name: "Y", URL: "https://y.test/{}", Status: 200}
	assert.True(t, e.Matches(200, "anything at all"))
	assert.False(t, e.Matches(301, ""))
}

func TestLoadCatalogueFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "platforms.yaml")
	content := `platforms:
  - name: Example
    url: "https://example.test/{}"
    status: 200
    markers:
      - "no such user"
`
	assert.Nil(t, os.WriteFile(file, []byte(content), 0o644))

	c, err := Load(file)
	assert.Nil(t, err)
	assert.Equal(t, len(c.Platforms), 1)
	assert.Equal(t, c.Platforms[0].Name, "Example")
	assert.Equal(t, c.Platforms[0].Markers, []string{"no such user"})
}

func TestLoadRejectsBadCatalogue(t *testing.T) {
	dir := t.TempDir()

	noPlaceholder := filepath.Join(dir, "bad.yaml")
	assert.Nil(t, os.WriteFile(noPlaceholder, []byte("platforms:\n  - name: Bad\n    url: \"https://bad.test/user\"\n"), 0o644))
	_, err := Load(noPlaceholder)
	assert.NotNil(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	assert.Nil(t, os.WriteFile(empty, []byte("platforms: []\n"), 0o644))
	_, err = Load(empty)
	assert.Equal(t, err, ErrNoCatalogue)
}

func TestJobsSubstitution(t *testing.T) {
	c := Catalogue{Platforms: []Entry{
		{Name: "A", URL: "https://a.test/{}"},
		{Name: "B", URL: "https://{}.b.test"},
	}}
	jobs, err := Jobs(c, "alice")
	assert.Nil(t, err)
	assert.Equal(t, len(jobs), 2)
	assert.Equal(t, jobs[0].Kind, probe.KindPlatform)
	assert.Equal(t, jobs[0].Platform.URL, "https://a.test/alice")
	assert.Equal(t, jobs[1].Platform.URL, "https://alice.b.test")

	_, err = Jobs(c, "  ")
	assert.NotNil(t, err)
}

// An always-200 platform must be rejected when the "not found" marker is in
// the page even though the status rule passes.
func TestProbeMarkerRejects200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/real") {
			w.Write([]byte("<html>profile of real</html>"))
			return
		}
		w.Write([]byte("<html>Sorry, this account doesn't exist</html>"))
	}))
	defer srv.Close()

	c := Catalogue{Platforms: []Entry{{
		Name:    "Soft",
		URL:     srv.URL + "/{}",
		Markers: []string{"This account doesn't exist"},
	}}}
	p, err := NewProber(c, nil)
	assert.Nil(t, err)

	jobs, err := Jobs(c, "ghost")
	assert.Nil(t, err)
	o := p.Probe(context.Background(), jobs[0])
	assert.Equal(t, o.Status, probe.StatusSuccess)
	assert.Equal(t, o.Class, probe.ClassNotFound)
	assert.Equal(t, o.HTTPStatus, 200)

	jobs, err = Jobs(c, "real")
	assert.Nil(t, err)
	o = p.Probe(context.Background(), jobs[0])
	assert.Equal(t, o.Class, probe.ClassExists)
}

func TestProbeStatusRule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/alice" {
			w.Write([]byte("profile"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := Catalogue{Platforms: []Entry{{Name: "Plain", URL: srv.URL + "/{}"}}}
	p, err := NewProber(c, nil)
	assert.Nil(t, err)

	jobs, _ := Jobs(c, "alice")
	assert.Equal(t, p.Probe(context.Background(), jobs[0]).Class, probe.ClassExists)

	jobs, _ = Jobs(c, "nobody")
	assert.Equal(t, p.Probe(context.Background(), jobs[0]).Class, probe.ClassNotFound)
}

func TestProbeUnknownPlatform(t *testing.T) {
	p, err := NewProber(Default(), nil)
	assert.Nil(t, err)

	o := p.Probe(context.Background(), probe.PlatformJob(0, "Nowhere", "https://nowhere.test/u"))
	assert.Equal(t, o.Status, probe.StatusError)
	assert.NotNil(t, o.Cause)
}
