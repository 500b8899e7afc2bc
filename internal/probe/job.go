package probe

import (
	"context"
	"fmt"
)

// Kind selects which payload field of a Job is meaningful.
type Kind string

const (
	KindPort     Kind = "port"
	KindPath     Kind = "path"
	KindPlatform Kind = "platform"
)

// PlatformRef carries the catalogue identity of a platform job: the platform
// name and the concrete profile URL after placeholder substitution.
type PlatformRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Job is one unit of probing work. IDs are assigned per kind by the producer
// and stay stable across retries: a retry re-submits the same job with a
// higher Attempt, it never mints a new one.
type Job struct {
	ID       int         `json:"id"`
	Kind     Kind        `json:"kind"`
	Port     int         `json:"port,omitempty"`
	Path     string      `json:"path,omitempty"`
	Platform PlatformRef `json:"platform,omitzero"`
	Attempt  int         `json:"attempt"`
}

// PortJob builds a port-kind job.
func PortJob(id, port int) Job {
	return Job{ID: id, Kind: KindPort, Port: port}
}

// PathJob builds a path-kind job.
func PathJob(id int, path string) Job {
	return Job{ID: id, Kind: KindPath, Path: path}
}

// PlatformJob builds a platform-kind job.
func PlatformJob(id int, name, profileURL string) Job {
	return Job{ID: id, Kind: KindPlatform, Platform: PlatformRef{Name: name, URL: profileURL}}
}

// Candidate is the human-readable label of what the job probes.
func (j Job) Candidate() string {
	switch j.Kind {
	case KindPort:
		return fmt.Sprintf("%d/tcp", j.Port)
	case KindPath:
		return j.Path
	case KindPlatform:
		return j.Platform.Name
	}
	return ""
}

// Prober executes one network attempt for a job. The context carries the
// per-attempt deadline; implementations must honor it and must not retry on
// their own, the scheduler owns the retry policy.
type Prober interface {
	Probe(ctx context.Context, job Job) Outcome
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(ctx context.Context, job Job) Outcome

func (f ProberFunc) Probe(ctx context.Context, job Job) Outcome { return f(ctx, job) }
