package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers/citizen"
	"github.com/UjjawalMishra93/civic-issue-system/internal/api/middleware"
)

// CitizenHandlers groups the handlers behind the citizen dashboard API
type CitizenHandlers struct {
	Dashboard     *citizen.DashboardHandler
	Issues        *citizen.IssuesHandler
	Notifications *citizen.NotificationsHandler
}

// RegisterCitizenRoutes registers the dashboard, issue, upvote and notification endpoints.
// Auth is optional at the router so that unauthenticated toggles can be
// answered (and recorded) by the dashboard with AuthRequired.
func RegisterCitizenRoutes(r chi.Router, h CitizenHandlers, authMiddleware *middleware.JWTAuthMiddleware, rateLimiter *middleware.RateLimiter) {
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.OptionalAuth)
		if rateLimiter != nil {
			r.Use(rateLimiter.Middleware)
		}

		r.Get("/dashboard", h.Dashboard.HandleGetDashboard)
		r.With(authMiddleware.RequireAuth).Post("/dashboard/refresh", h.Dashboard.HandleRefresh)
		r.Delete("/dashboard", h.Dashboard.HandleClose)

		r.Get("/issues", h.Issues.HandleList)
		r.Get("/issues/{issueID}", h.Issues.HandleGet)
		r.Post("/issues/{issueID}/upvote", h.Dashboard.HandleToggleUpvote)

		r.Get("/notifications", h.Notifications.HandleDrain)
	})
}
