// Package report folds outcome streams into the final run document: phase
// records with completeness tracking, per-kind summaries and the best-effort
// enrichment sections.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shii9/ProbeNio/internal/content"
	"github.com/shii9/ProbeNio/internal/geo"
	"github.com/shii9/ProbeNio/internal/identity"
	"github.com/shii9/ProbeNio/internal/portscan"
	"github.com/shii9/ProbeNio/internal/probe"
	"github.com/shii9/ProbeNio/internal/resolve"
)

// Phase is the aggregated record of one scheduler run.
type Phase struct {
	Kind     probe.Kind      `json:"kind"`
	Jobs     int             `json:"jobs"`
	Outcomes []probe.Outcome `json:"outcomes"`

	// Duplicates lists job IDs that settled more than once. The scheduler
	// promises exactly one outcome per job, so any entry here is a bug
	// worth surfacing; the extra outcomes stay recorded untouched.
	Duplicates []int `json:"duplicates,omitempty"`

	// Complete means every job settled exactly once. Partial marks a run cut
	// short by cancellation.
	Complete   bool   `json:"complete"`
	Partial    bool   `json:"partial"`
	DurationMS int64  `json:"duration_ms"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Aggregator consumes one phase's outcome stream.
type Aggregator struct {
	kind    probe.Kind
	jobs    int
	started time.Time
	seen    map[int]int
	phase   Phase
}

func NewAggregator(kind probe.Kind, jobs int) *Aggregator {
	return &Aggregator{
		kind:    kind,
		jobs:    jobs,
		started: time.Now(),
		seen:    map[int]int{},
	}
}

// Add records one outcome and flags repeats of a job ID.
func (a *Aggregator) Add(o probe.Outcome) {
	a.seen[o.Job.ID]++
	if a.seen[o.Job.ID] == 2 {
		a.phase.Duplicates = append(a.phase.Duplicates, o.Job.ID)
	}
	a.phase.Outcomes = append(a.phase.Outcomes, o)
}

// Finish closes the phase. cancelled marks the run as cut short regardless
// of how many outcomes made it out before the cut.
func (a *Aggregator) Finish(cancelled bool) Phase {
	p := a.phase
	p.Kind = a.kind
	p.Jobs = a.jobs
	p.DurationMS = time.Since(a.started).Milliseconds()
	p.Complete = !cancelled && len(a.seen) == a.jobs && len(p.Duplicates) == 0
	p.Partial = cancelled || len(a.seen) < a.jobs
	sort.Slice(p.Outcomes, func(i, j int) bool { return p.Outcomes[i].Job.ID < p.Outcomes[j].Job.ID })
	return p
}

// Collect is the bulk form: it drains the stream and closes the phase.
// cancelled is consulted after the drain, typically ctx.Err wrapped in a
// closure.
func Collect(kind probe.Kind, jobs int, outcomes <-chan probe.Outcome, cancelled func() bool) Phase {
	a := NewAggregator(kind, jobs)
	for o := range outcomes {
		a.Add(o)
	}
	return a.Finish(cancelled != nil && cancelled())
}

// SkippedPhase records a phase that never scheduled, e.g. an unresolvable
// target for the port scan or a disabled module.
func SkippedPhase(kind probe.Kind, reason string) Phase {
	return Phase{Kind: kind, Skipped: true, SkipReason: reason, Complete: true}
}

// OpenPort is one summary row of the port phase.
type OpenPort struct {
	Port      int    `json:"port"`
	Service   string `json:"service,omitempty"`
	Banner    string `json:"banner,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// FoundPath is one summary row of the path phase; forbidden answers are kept
// next to found ones since both prove the path exists.
type FoundPath struct {
	Path       string `json:"path"`
	Class      string `json:"class"`
	HTTPStatus int    `json:"http_status"`
	BodyLength int64  `json:"body_length"`
}

// Account is one confirmed platform account.
type Account struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Report is the complete run document.
type Report struct {
	RunID       string               `json:"run_id"`
	GeneratedAt string               `json:"generated_at"`
	Target      resolve.Target       `json:"target"`
	Web         *resolve.WebIdentity `json:"web,omitempty"`

	Phases []Phase `json:"phases"`

	OpenPorts  []OpenPort  `json:"open_ports,omitempty"`
	FoundPaths []FoundPath `json:"found_paths,omitempty"`
	Accounts   []Account   `json:"accounts,omitempty"`

	Geo     *geo.Location          `json:"geo,omitempty"`
	Whois   *identity.Registration `json:"whois,omitempty"`
	IPWhois *identity.Allocation   `json:"ip_whois,omitempty"`
	Pages   []content.Page         `json:"pages,omitempty"`
	Robots  *content.Robots        `json:"robots,omitempty"`

	// Notes carries run-level conditions: unresolvable target, aborted
	// phases, enrichment failures worth the reader's attention.
	Notes []string `json:"notes,omitempty"`
}

// New starts a report for the target with a fresh run ID.
func New(target resolve.Target) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Target:      target,
	}
}

// AddPhase appends the phase and folds its outcomes into the summaries.
func (r *Report) AddPhase(p Phase) {
	r.Phases = append(r.Phases, p)
	if len(p.Duplicates) > 0 {
		r.Note("%s phase produced duplicate outcomes for job IDs %v", p.Kind, p.Duplicates)
	}
	switch p.Kind {
	case probe.KindPort:
		for _, o := range p.Outcomes {
			if o.Class == probe.ClassOpen {
				r.OpenPorts = append(r.OpenPorts, OpenPort{
					Port:      o.Job.Port,
					Service:   portscan.ServiceName(o.Job.Port),
					LatencyMS: o.LatencyMS,
				})
			}
		}
		sort.Slice(r.OpenPorts, func(i, j int) bool { return r.OpenPorts[i].Port < r.OpenPorts[j].Port })
	case probe.KindPath:
		for _, o := range p.Outcomes {
			if o.Class == probe.ClassFound || o.Class == probe.ClassForbidden {
				r.FoundPaths = append(r.FoundPaths, FoundPath{
					Path:       o.Job.Path,
					Class:      o.Class,
					HTTPStatus: o.HTTPStatus,
					BodyLength: o.BodyLength,
				})
			}
		}
	case probe.KindPlatform:
		for _, o := range p.Outcomes {
			if o.Class == probe.ClassExists {
				r.Accounts = append(r.Accounts, Account{
					Platform: o.Job.Platform.Name,
					URL:      o.Job.Platform.URL,
				})
			}
		}
	}
}

// AttachBanners merges banner-grab results into the open-port summary.
func (r *Report) AttachBanners(banners []portscan.Banner) {
	byPort := make(map[int]portscan.Banner, len(banners))
	for _, b := range banners {
		byPort[b.Port] = b
	}
	for i := range r.OpenPorts {
		if b, ok := byPort[r.OpenPorts[i].Port]; ok {
			r.OpenPorts[i].Banner = b.Text
			if b.Service != "" {
				r.OpenPorts[i].Service = b.Service
			}
		}
	}
}

// Note records a run-level condition.
func (r *Report) Note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Complete reports whether every non-skipped phase settled every job.
func (r *Report) Complete() bool {
	for _, p := range r.Phases {
		if !p.Complete {
			return false
		}
	}
	return true
}

// Phase returns the record for a kind, if that phase ran.
func (r *Report) Phase(kind probe.Kind) (Phase, bool) {
	for _, p := range r.Phases {
		if p.Kind == kind {
			return p, true
		}
	}
	return Phase{}, false
}
