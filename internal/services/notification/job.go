package notification

// Job types the engine emits.
const (
	TypeWinner     = "winner"
	TypeOutbid     = "outbid"
	TypeEndingSoon = "ending_soon"
)

// Job is the ephemeral value handed from the engine to the
// dispatcher. It lives on the Redis stream only, never in Postgres.
type Job struct {
	Type      string            `json:"type"`
	Shop      string            `json:"shop"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data"`
}

// Outcome of dispatching one job.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeLogged  Outcome = "logged"  // no transport configured, degraded to a log line
	OutcomeSkipped Outcome = "skipped" // notification type disabled by the merchant
	OutcomeFailed  Outcome = "failed"
)
