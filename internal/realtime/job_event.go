package realtime

import (
	"encoding/json"
	"fmt"
)

type JobEventKind string

const (
	JobEventStatus    JobEventKind = "status"
	JobEventCompleted JobEventKind = "completed"
	JobEventError     JobEventKind = "error"
)

// JobEvent is one push notification about a job in flight. Step is 1-based and
// optional; consumers treat a missing step as 1.
type JobEvent struct {
	Kind         JobEventKind `json:"kind"`
	JobID        string       `json:"job_id"`
	Step         *int         `json:"step,omitempty"`
	StepName     string       `json:"step_name,omitempty"`
	ResultType   string       `json:"result_type,omitempty"`
	ResultID     string       `json:"result_id,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// jobPayload is the union of the Data fields the server emits for job events.
type jobPayload struct {
	JobID        string `json:"job_id"`
	Step         *int   `json:"step,omitempty"`
	StepName     string `json:"step_name,omitempty"`
	ResultType   string `json:"result_type,omitempty"`
	ResultID     string `json:"result_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DecodeJobEvent maps a wire message to a JobEvent. ok is false for events a
// status view does not care about (JobCreated, JobCancelled, unknown events).
func DecodeJobEvent(msg SSEMessage) (JobEvent, bool, error) {
	var kind JobEventKind
	switch msg.Event {
	case SSEEventJobProgress:
		kind = JobEventStatus
	case SSEEventJobDone:
		kind = JobEventCompleted
	case SSEEventJobFailed:
		kind = JobEventError
	default:
		return JobEvent{}, false, nil
	}

	raw, err := dataBytes(msg.Data)
	if err != nil {
		return JobEvent{}, false, err
	}
	var p jobPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return JobEvent{}, false, fmt.Errorf("decode %s payload: %w", msg.Event, err)
		}
	}
	return JobEvent{
		Kind:         kind,
		JobID:        p.JobID,
		Step:         p.Step,
		StepName:     p.StepName,
		ResultType:   p.ResultType,
		ResultID:     p.ResultID,
		ErrorMessage: p.ErrorMessage,
	}, true, nil
}

// DecodeMessage parses one JSON-encoded SSEMessage, keeping Data raw.
func DecodeMessage(b []byte) (SSEMessage, error) {
	var wire struct {
		Channel string          `json:"channel"`
		Event   SSEEvent        `json:"event"`
		Data    json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return SSEMessage{}, err
	}
	msg := SSEMessage{Channel: wire.Channel, Event: wire.Event}
	if len(wire.Data) > 0 {
		msg.Data = wire.Data
	}
	return msg, nil
}

func dataBytes(data any) ([]byte, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return d, nil
	case []byte:
		return d, nil
	default:
		return json.Marshal(d)
	}
}
