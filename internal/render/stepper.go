package render

import "github.com/yungbote/studygen/internal/progress"

type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepCurrent   StepStatus = "current"
	StepPending   StepStatus = "pending"
	StepFailed    StepStatus = "failed"
)

// StepView is one row of the vertical stepper.
type StepView struct {
	Index       int
	Title       string
	Description string
	Status      StepStatus
}

// Stepper derives the display status of every step from the reconciled state.
// Exactly one status per step; failed only ever marks the step at StepIndex.
func Stepper(steps []progress.Step, s progress.State) []StepView {
	out := make([]StepView, len(steps))
	for i, st := range steps {
		v := StepView{Index: i, Title: st.Title, Description: st.Description}
		switch {
		case s.Completed:
			v.Status = StepCompleted
		case i < s.StepIndex:
			v.Status = StepCompleted
		case i == s.StepIndex && s.Error != "":
			v.Status = StepFailed
		case i == s.StepIndex:
			v.Status = StepCurrent
			if s.StepLabel != "" {
				v.Title = s.StepLabel
			}
		default:
			v.Status = StepPending
		}
		out[i] = v
	}
	return out
}
