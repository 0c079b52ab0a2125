package routes

import (
	"github.com/echoboardhq/echoboard-segments/internal/handlers"
	"github.com/echoboardhq/echoboard-segments/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	segmentHandler *handlers.SegmentHandler,
) {
	// Evaluation triggers scan the principal table per segment, so they get
	// a tighter per-IP limit than the CRUD surface
	rateLimitConfig := middleware.DefaultEvaluationRateLimit()

	router.Route("/segments", func(r chi.Router) {
		r.Post("/", segmentHandler.CreateSegment)
		r.Get("/", segmentHandler.ListSegments)
		r.Get("/stats", segmentHandler.GetStats)
		r.Get("/members", segmentHandler.GetSegmentMembers)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/evaluate", segmentHandler.EvaluateAllSegments)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", segmentHandler.GetSegment)
			r.Patch("/", segmentHandler.UpdateSegment)
			r.Delete("/", segmentHandler.DeleteSegment)
			r.Post("/members", segmentHandler.AssignMembers)
			r.Delete("/members", segmentHandler.RemoveMembers)
			r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/evaluate", segmentHandler.EvaluateSegment)
		})
	})

	router.Get("/principals/{id}/segments", segmentHandler.GetPrincipalSegments)
}
