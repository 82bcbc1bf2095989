package realtime

type SSEEvent string

const (
	SSEEventJobCreated   SSEEvent = "JobCreated"
	SSEEventJobProgress  SSEEvent = "JobProgress"
	SSEEventJobDone      SSEEvent = "JobDone"
	SSEEventJobFailed    SSEEvent = "JobFailed"
	SSEEventJobCancelled SSEEvent = "JobCancelled"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// JobChannel is the per-job channel that status views subscribe to.
func JobChannel(jobID string) string {
	return "job:" + jobID
}
