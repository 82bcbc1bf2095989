package navigation

import (
	"net/url"
	"strings"

	"github.com/yungbote/studygen/internal/domain/jobs"
)

// Route is an application path such as "/summary/abc".
type Route string

const (
	RouteDashboard Route = "/dashboard"
	RouteCreate    Route = "/create"
)

func SummaryRoute(id string) Route   { return Route("/summary/" + url.PathEscape(id)) }
func QuizRoute(id string) Route      { return Route("/quiz/take/" + url.PathEscape(id)) }
func FlashcardRoute(id string) Route { return Route("/flashcards/study/" + url.PathEscape(id)) }

// ForResult picks the viewer for a finished job. resultType may be a result
// type ("quiz") or a job type ("quiz-generation"); both come off the wire.
// Unknown types and missing ids land on the dashboard.
func ForResult(resultType, id string) Route {
	id = strings.TrimSpace(id)
	if id == "" {
		return RouteDashboard
	}
	switch strings.ToLower(strings.TrimSpace(resultType)) {
	case jobs.ResultSummary, string(jobs.JobTypeSummary):
		return SummaryRoute(id)
	case jobs.ResultQuiz, string(jobs.JobTypeQuiz):
		return QuizRoute(id)
	case jobs.ResultFlashcard, "flashcards", string(jobs.JobTypeFlashcard):
		return FlashcardRoute(id)
	default:
		return RouteDashboard
	}
}

func (r Route) String() string { return string(r) }

// URL joins the route onto an application base URL.
func (r Route) URL(base string) string {
	return strings.TrimRight(base, "/") + string(r)
}
