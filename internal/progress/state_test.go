package progress

import (
	"testing"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/navigation"
	"github.com/yungbote/studygen/internal/pkg/pointers"
	"github.com/yungbote/studygen/internal/realtime"
)

func TestStatusUpdateConvertsToZeroBasedIndex(t *testing.T) {
	s := State{JobID: "j1"}
	s, eff := s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(3)})
	if s.StepIndex != 2 {
		t.Fatalf("step index: want=2 got=%d", s.StepIndex)
	}
	if s.Terminal() {
		t.Fatalf("status update must not make the view terminal")
	}
	if !eff.Changed || eff.StopPolling || eff.Navigate != nil {
		t.Fatalf("unexpected effect: %+v", eff)
	}
}

func TestStatusUpdateDefaultsAndClamps(t *testing.T) {
	s := State{JobID: "j1", StepIndex: 2}
	s, _ = s.Apply(StatusUpdate{JobID: "j1"})
	if s.StepIndex != 0 {
		t.Fatalf("missing step should mean step 1, got index %d", s.StepIndex)
	}
	s, _ = s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(-4)})
	if s.StepIndex != 0 {
		t.Fatalf("negative step should clamp to 0, got %d", s.StepIndex)
	}
	s, _ = s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(9)})
	if s.StepIndex != 3 {
		t.Fatalf("step past the end should clamp to the last step, got %d", s.StepIndex)
	}
}

func TestPollResultStepClampsToLastStep(t *testing.T) {
	s := State{JobID: "j1"}
	s, _ = s.Apply(PollResult{Job: jobs.Job{ID: "j1", Type: jobs.JobTypeQuiz, Status: jobs.JobStatusProcessing, CurrentStep: 7}})
	if s.StepIndex != len(StepsFor(jobs.JobTypeQuiz))-1 {
		t.Fatalf("step index: got %d", s.StepIndex)
	}
	s, _ = s.Apply(ErrorEvent{JobID: "j1", Message: "boom"})
	if s.StepIndex != 3 {
		t.Fatalf("failed step should stay in range, got %d", s.StepIndex)
	}
}

func TestStatusUpdateLabelOverride(t *testing.T) {
	s := State{JobID: "j1"}
	s, _ = s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(2), StepName: "Reading slides"})
	if s.StepLabel != "Reading slides" {
		t.Fatalf("label: got %q", s.StepLabel)
	}
	s, eff := s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(2)})
	if s.StepLabel != "Reading slides" || eff.Changed {
		t.Fatalf("same step without a name keeps the label, got %q changed=%v", s.StepLabel, eff.Changed)
	}
	s, _ = s.Apply(StatusUpdate{JobID: "j1", Step: pointers.Int(3)})
	if s.StepLabel != "" {
		t.Fatalf("moving on without a name clears the stale label, got %q", s.StepLabel)
	}
}

func TestStaleJobEventsIgnored(t *testing.T) {
	s := State{JobID: "mine"}
	inputs := []Input{
		StatusUpdate{JobID: "other", Step: pointers.Int(4)},
		CompletedEvent{JobID: "other", ResultType: "summary", ResultID: "x"},
		ErrorEvent{JobID: "other", Message: "boom"},
		PollResult{Job: jobs.Job{ID: "other", Status: jobs.JobStatusCompleted}},
	}
	for _, in := range inputs {
		next, eff := s.Apply(in)
		if next != s || eff != (Effect{}) {
			t.Fatalf("input %T for another job changed state: %+v %+v", in, next, eff)
		}
	}
}

func TestUnknownJobIDAcceptsEventsProvisionally(t *testing.T) {
	s := State{}
	s, _ = s.Apply(StatusUpdate{JobID: "whatever", Step: pointers.Int(2)})
	if s.StepIndex != 1 {
		t.Fatalf("step index: want=1 got=%d", s.StepIndex)
	}
	if s.JobID != "" {
		t.Fatalf("provisional acceptance must not pin a job id, got %q", s.JobID)
	}
}

func TestCompletedEventNavigatesOnceWithDelay(t *testing.T) {
	s := State{JobID: "j1"}
	s, eff := s.Apply(CompletedEvent{JobID: "j1", ResultType: "quiz", ResultID: "q1"})
	if !s.Completed || !eff.StopPolling {
		t.Fatalf("completed event: state=%+v effect=%+v", s, eff)
	}
	if eff.Navigate == nil || eff.Navigate.Route != navigation.QuizRoute("q1") || !eff.Navigate.Delayed {
		t.Fatalf("navigation: %+v", eff.Navigate)
	}
	again, eff := s.Apply(CompletedEvent{JobID: "j1", ResultType: "summary", ResultID: "other"})
	if again != s || eff.Navigate != nil {
		t.Fatalf("duplicate completion must be a no-op, got %+v", eff)
	}
}

func TestErrorEventUsesGenericMessageAndFreezes(t *testing.T) {
	s := State{JobID: "j1", StepIndex: 1}
	s, eff := s.Apply(ErrorEvent{JobID: "j1"})
	if s.Error != GenericFailureMessage {
		t.Fatalf("error: want %q got %q", GenericFailureMessage, s.Error)
	}
	if !eff.StopPolling || eff.Navigate != nil {
		t.Fatalf("effect: %+v", eff)
	}
	frozen := s
	for _, in := range []Input{
		StatusUpdate{JobID: "j1", Step: pointers.Int(4)},
		PollResult{Job: jobs.Job{ID: "j1", Status: jobs.JobStatusCompleted, Type: jobs.JobTypeSummary, ReferenceID: "s"}},
		PollResult{Job: jobs.Job{ID: "j1", Status: jobs.JobStatusFailed, Error: "transcript"}},
		CompletedEvent{JobID: "j1", ResultType: "summary", ResultID: "s"},
	} {
		next, eff := s.Apply(in)
		if next != frozen || eff != (Effect{}) {
			t.Fatalf("terminal state changed by %T: %+v", in, next)
		}
	}
}

func TestPollCompletedNavigatesImmediately(t *testing.T) {
	s := State{JobID: "abc123"}
	s, eff := s.Apply(PollResult{Job: jobs.Job{
		ID:          "abc123",
		Type:        jobs.JobTypeSummary,
		Status:      jobs.JobStatusCompleted,
		ReferenceID: "sum-1",
	}})
	if !s.Completed || !eff.StopPolling {
		t.Fatalf("state=%+v effect=%+v", s, eff)
	}
	if eff.Navigate == nil || eff.Navigate.Delayed || eff.Navigate.Route != "/summary/sum-1" {
		t.Fatalf("navigation: %+v", eff.Navigate)
	}
}

func TestPollCompletedPrefersReferenceType(t *testing.T) {
	s := State{JobID: "j"}
	_, eff := s.Apply(PollResult{Job: jobs.Job{
		ID:            "j",
		Type:          jobs.JobTypeSummary,
		Status:        jobs.JobStatusCompleted,
		ReferenceType: "flashcard",
		ReferenceID:   "deck",
	}})
	if eff.Navigate == nil || eff.Navigate.Route != navigation.FlashcardRoute("deck") {
		t.Fatalf("navigation: %+v", eff.Navigate)
	}
}

func TestPollCompletedWithoutReferenceGoesToDashboard(t *testing.T) {
	s := State{JobID: "j"}
	_, eff := s.Apply(PollResult{Job: jobs.Job{ID: "j", Type: jobs.JobTypeQuiz, Status: jobs.JobStatusCompleted}})
	if eff.Navigate == nil || eff.Navigate.Route != navigation.RouteDashboard {
		t.Fatalf("navigation: %+v", eff.Navigate)
	}
}

func TestPollFailedInfersStep(t *testing.T) {
	cases := []struct {
		errText string
		want    int
		wantMsg string
	}{
		{"Transcript extraction failed", 1, "Transcript extraction failed"},
		{"content analysis timed out", 0, "content analysis timed out"},
		{"summary generation failed", 2, "summary generation failed"},
		{"disk full", 2, "disk full"},
		{"", 2, GenericFailureMessage},
	}
	for _, tc := range cases {
		s := State{JobID: "j", StepIndex: 3, StepLabel: "Polishing"}
		s, eff := s.Apply(PollResult{Job: jobs.Job{ID: "j", Status: jobs.JobStatusFailed, Error: tc.errText}})
		if s.StepIndex != tc.want {
			t.Fatalf("%q: step index want=%d got=%d", tc.errText, tc.want, s.StepIndex)
		}
		if s.Error != tc.wantMsg {
			t.Fatalf("%q: error want=%q got=%q", tc.errText, tc.wantMsg, s.Error)
		}
		if s.StepLabel != "" || !eff.StopPolling || eff.Navigate != nil {
			t.Fatalf("%q: state=%+v effect=%+v", tc.errText, s, eff)
		}
	}
}

func TestPollCancelledIsTerminalWithoutNavigation(t *testing.T) {
	s := State{JobID: "j"}
	s, eff := s.Apply(PollResult{Job: jobs.Job{ID: "j", Status: jobs.JobStatusCancelled}})
	if s.Error != CancelledMessage || !eff.StopPolling || eff.Navigate != nil {
		t.Fatalf("state=%+v effect=%+v", s, eff)
	}
}

func TestPollProcessingTracksStepAndMetadata(t *testing.T) {
	s := State{JobID: "j"}
	s, eff := s.Apply(PollResult{Job: jobs.Job{
		ID:          "j",
		Type:        jobs.JobTypeFlashcard,
		Status:      jobs.JobStatusProcessing,
		CurrentStep: 2,
		StepName:    "Extracting transcript",
		SourceName:  "lecture-04.mp4",
		SourceKind:  jobs.SourceUpload,
	}})
	if !eff.Changed || eff.StopPolling {
		t.Fatalf("effect: %+v", eff)
	}
	if s.JobType != jobs.JobTypeFlashcard || s.StepIndex != 1 || s.SourceName != "lecture-04.mp4" {
		t.Fatalf("state: %+v", s)
	}

	_, eff = s.Apply(PollResult{Job: jobs.Job{ID: "j", Status: jobs.JobStatusPending}})
	if eff.Changed {
		t.Fatalf("pending record without step info should not change the view")
	}
}

func TestCompletedThenPollKeepsFirstWriter(t *testing.T) {
	s := State{JobID: "j"}
	s, first := s.Apply(CompletedEvent{JobID: "j", ResultType: "summary", ResultID: "from-push"})
	_, second := s.Apply(PollResult{Job: jobs.Job{ID: "j", Type: jobs.JobTypeSummary, Status: jobs.JobStatusCompleted, ReferenceID: "from-poll"}})
	if first.Navigate == nil || first.Navigate.Route != "/summary/from-push" {
		t.Fatalf("first navigation: %+v", first.Navigate)
	}
	if second.Navigate != nil {
		t.Fatalf("poll after push completion must not navigate")
	}
}

func TestFromEvent(t *testing.T) {
	in, ok := FromEvent(realtime.JobEvent{Kind: realtime.JobEventError, JobID: "j", ErrorMessage: "x"})
	if !ok {
		t.Fatalf("error event should convert")
	}
	if ev, isErr := in.(ErrorEvent); !isErr || ev.Message != "x" {
		t.Fatalf("got %#v", in)
	}
	if _, ok := FromEvent(realtime.JobEvent{Kind: "bogus"}); ok {
		t.Fatalf("unknown kinds should not convert")
	}
}
