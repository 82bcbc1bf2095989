package progress

import "github.com/yungbote/studygen/internal/domain/jobs"

type Step struct {
	Title       string
	Description string
}

var (
	summarySteps = []Step{
		{Title: "Analyzing content", Description: "Reading the lecture and detecting its structure"},
		{Title: "Extracting transcript", Description: "Turning speech and slides into text"},
		{Title: "Generating summary", Description: "Condensing the key ideas"},
		{Title: "Finalizing", Description: "Formatting and saving your summary"},
	}
	quizSteps = []Step{
		{Title: "Analyzing content", Description: "Reading the lecture and detecting its structure"},
		{Title: "Extracting transcript", Description: "Turning speech and slides into text"},
		{Title: "Generating questions", Description: "Writing questions and answer options"},
		{Title: "Finalizing quiz", Description: "Checking answers and saving your quiz"},
	}
	flashcardSteps = []Step{
		{Title: "Analyzing content", Description: "Reading the lecture and detecting its structure"},
		{Title: "Extracting transcript", Description: "Turning speech and slides into text"},
		{Title: "Creating flashcards", Description: "Pairing terms with definitions"},
		{Title: "Finalizing deck", Description: "Ordering cards and saving your deck"},
	}
)

// StepsFor returns the ordered phases shown while a job of type t runs.
// Anything that is not a quiz or flashcard job gets the summary pipeline.
func StepsFor(t jobs.JobType) []Step {
	var src []Step
	switch t {
	case jobs.JobTypeQuiz:
		src = quizSteps
	case jobs.JobTypeFlashcard:
		src = flashcardSteps
	default:
		src = summarySteps
	}
	return append([]Step(nil), src...)
}
