package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/progress"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
	ansiClear  = "\x1b[H\x1b[2J"
	controlsOK = "[c] cancel"
	controlsKO = "[r] retry  [d] dashboard"
)

// Terminal draws the status view as text. When the writer is a TTY it
// redraws in place with colour; otherwise each frame is appended as plain text.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, color: isTTY(w) && os.Getenv("NO_COLOR") == ""}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes one frame for s. Safe to call from OnChange.
func (t *Terminal) Render(s progress.State) error {
	var b bytes.Buffer
	if t.color {
		b.WriteString(ansiClear)
	}
	t.header(&b, s)
	for _, v := range Stepper(progress.StepsFor(s.JobType), s) {
		t.step(&b, v)
	}
	b.WriteString("\n")
	switch {
	case s.Completed:
		b.WriteString(t.paint(ansiGreen, "Done. Opening your results...") + "\n")
	case s.Error != "":
		b.WriteString(t.paint(ansiRed, "Error: "+s.Error) + "\n")
		b.WriteString(t.paint(ansiDim, controlsKO) + "\n")
	default:
		b.WriteString(t.paint(ansiDim, controlsOK) + "\n")
	}
	if !t.color {
		b.WriteString("\n")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.w.Write(b.Bytes())
	return err
}

func (t *Terminal) header(b *bytes.Buffer, s progress.State) {
	title := "Processing"
	if s.SourceName != "" {
		title = s.SourceName
	}
	b.WriteString(t.paint(ansiBold, title) + "\n")

	var meta []string
	if kind := sourceKindLabel(s.SourceKind); kind != "" {
		meta = append(meta, kind)
	}
	if s.JobType != "" {
		meta = append(meta, jobTypeLabel(s.JobType))
	}
	if s.JobID != "" {
		meta = append(meta, "job "+s.JobID)
	}
	if len(meta) > 0 {
		b.WriteString(t.paint(ansiDim, strings.Join(meta, " · ")) + "\n")
	}
	b.WriteString("\n")
}

func (t *Terminal) step(b *bytes.Buffer, v StepView) {
	var marker, colour string
	switch v.Status {
	case StepCompleted:
		marker, colour = "✓", ansiGreen
	case StepCurrent:
		marker, colour = "●", ansiCyan
	case StepFailed:
		marker, colour = "✗", ansiRed
	default:
		marker, colour = "○", ansiDim
	}
	fmt.Fprintf(b, "  %s %s\n", t.paint(colour, marker), t.paint(titleStyle(v.Status), v.Title))
	if v.Status == StepCurrent && v.Description != "" {
		fmt.Fprintf(b, "    %s\n", t.paint(ansiDim, v.Description))
	}
}

func titleStyle(st StepStatus) string {
	switch st {
	case StepCurrent:
		return ansiBold
	case StepPending:
		return ansiDim
	case StepFailed:
		return ansiRed
	default:
		return ""
	}
}

func (t *Terminal) paint(code, s string) string {
	if !t.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func sourceKindLabel(k jobs.SourceKind) string {
	switch k {
	case jobs.SourceVideoURL:
		return "video link"
	case jobs.SourceUpload:
		return "uploaded file"
	default:
		return string(k)
	}
}

func jobTypeLabel(t jobs.JobType) string {
	switch t {
	case jobs.JobTypeQuiz:
		return "quiz"
	case jobs.JobTypeFlashcard:
		return "flashcards"
	case jobs.JobTypeSummary:
		return "summary"
	default:
		return string(t)
	}
}
