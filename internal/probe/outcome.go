package probe

// Status is the terminal state of a job after all attempts.
type Status string

const (
	// StatusSuccess means the probe completed and produced a classification,
	// whatever that classification says about the candidate.
	StatusSuccess Status = "success"
	// StatusFailure means the last attempt failed at the network level.
	StatusFailure Status = "failure"
	// StatusTimeout means the last attempt exceeded its deadline.
	StatusTimeout Status = "timeout"
	// StatusError means the probe hit a non-transient problem and was not retried.
	StatusError Status = "error"
)

// Classification labels attached by the kind-specific probers.
const (
	ClassOpen        = "open"
	ClassClosed      = "closed"
	ClassFiltered    = "filtered"
	ClassFound       = "found"
	ClassForbidden   = "forbidden"
	ClassNotFound    = "not-found"
	ClassServerError = "server-error"
	ClassExists      = "exists"
)

// Outcome is the single terminal result of a job. Probers fill the status,
// classification and detail fields for one attempt; the scheduler stamps Job
// and Attempts once the job settles.
type Outcome struct {
	Job        Job    `json:"job"`
	Status     Status `json:"status"`
	Class      string `json:"class,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	BodyLength int64  `json:"body_length,omitempty"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`

	// Cause is the raw error behind a failure/timeout/error status. The
	// scheduler classifies it for retry decisions; it is not serialized.
	Cause error `json:"-"`
}

// Succeeded reports whether the probe produced a definite answer.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// retryable reports whether the scheduler should run another attempt:
// timeouts always qualify, network failures only when the cause is transient.
func retryable(o Outcome) bool {
	switch o.Status {
	case StatusTimeout:
		return true
	case StatusFailure:
		return IsTransient(o.Cause)
	default:
		return false
	}
}
