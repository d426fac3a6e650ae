package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/attempt"
	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/profile"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/rbac"
	"github.com/mind-engage/classquiz/internal/results"
)

// Deps are the services the API serves.
type Deps struct {
	Quizzes  *quiz.Catalog
	Attempts *attempt.Service
	Ledger   *grading.Ledger
	Results  *results.Reader
	Profiles *profile.Store
	Auth     *authmw.AuthService
	Log      *zap.Logger

	// Events serves the attempt journal; nil when no database is configured.
	Events EventLister

	// AllowClaimFallback trusts the token role when no profile is stored.
	AllowClaimFallback bool
}

// Mount registers the public login route and the protected API on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Profiles, d.Log))

	// Protected API (JWT → profile role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		pr.Use(authmw.AttachProfile(d.Profiles, d.AllowClaimFallback))

		pr.With(rbac.Require(rbac.PermProfilesWrite)).
			Put("/profiles/{uid}", PutProfileHandler(d.Profiles, d.Log))

		pr.Route("/quizzes", func(qr chi.Router) {
			qr.Use(rbac.Require(rbac.PermQuizWrite))
			qr.Put("/", PutQuizHandler(d.Quizzes, d.Log))
			qr.Get("/", ListQuizzesHandler(d.Quizzes, d.Log))
			qr.Post("/{quizKey}/archive", ArchiveQuizHandler(d.Quizzes, true, d.Log))
			qr.Post("/{quizKey}/restore", ArchiveQuizHandler(d.Quizzes, false, d.Log))
			qr.Delete("/{quizKey}", DeleteQuizHandler(d.Quizzes, d.Log))
		})

		// Student flow
		pr.Route("/attempts/{quizNumber}", func(ar chi.Router) {
			ar.Use(rbac.Require(rbac.PermAttemptTake))
			ar.Post("/", StartAttemptHandler(d.Attempts, d.Log))
			ar.Get("/", GetAttemptHandler(d.Attempts, d.Log))
			ar.Post("/answer", AnswerHandler(d.Attempts, d.Log))
			ar.Post("/navigate", NavigateHandler(d.Attempts, d.Log))
			ar.Post("/submit", SubmitHandler(d.Attempts, d.Log))
			ar.Post("/leave", LeaveHandler(d.Attempts, d.Log))
		})

		pr.With(rbac.Require(rbac.PermResultsOwn)).
			Get("/results/me", MyResultsHandler(d.Results, d.Log))
		pr.With(rbac.Require(rbac.PermResultsOwn)).
			Get("/results/me/{quizNumber}", MyReviewHandler(d.Results, d.Log))
		pr.With(rbac.Require(rbac.PermResultsClass)).
			Get("/results/class", ClassResultsHandler(d.Results, d.Log))

		pr.With(rbac.Require(rbac.PermGradingRead)).
			Get("/grading/pending", PendingGradingHandler(d.Results, d.Log))
		pr.With(rbac.Require(rbac.PermGradingRead)).
			Get("/grading/{attemptKey}", GradingReviewHandler(d.Results, d.Log))
		pr.With(rbac.Require(rbac.PermGradingWrite)).
			Post("/grading/{attemptKey}", ApplyGradesHandler(d.Results, d.Ledger, d.Log))
		pr.With(rbac.RequireAny(rbac.PermGradingRead, rbac.PermJournalRead)).
			Get("/grading/{attemptKey}/events", AttemptEventsHandler(d.Results, d.Events, d.Log))
	})
}
