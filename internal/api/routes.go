// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipforge/clipforge/internal/middleware"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:    true,
		TracingService:   s.cfg.TracingService,
		EnableLogging:    true,
		RateLimitEnabled: s.cfg.RateLimitEnabled,
		RateLimitRPM:     s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Get("/", s.handleSessionList)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Use(s.sessionCtx)
				r.Get("/", s.handleSessionGet)
				r.Delete("/", s.handleSessionDelete)
				r.Post("/reset", s.handleSessionReset)
				r.Get("/state", s.handleSessionState)
				r.Get("/watch", s.handleSessionWatch)
				r.Get("/config", s.handleConfigPreview)

				r.Put("/target-duration", s.handleSetTargetDuration)
				r.Put("/canvas", s.handleSetCanvas)
				r.Delete("/canvas", s.handleClearCanvas)
				r.Put("/audio/levels", s.handleSetAudioLevels)
				r.Put("/audio/music", s.handleSetMusic)
				r.Delete("/audio/music", s.handleClearMusic)

				r.Get("/eligibility/compose", s.handleComposeEligibility)
				r.Get("/eligibility/upload", s.handleUploadEligibility)

				r.Route("/selection", func(r chi.Router) {
					r.Get("/", s.handleSelectionGet)
					r.Post("/games/{gameID}", s.handleToggleGame)
					r.Post("/clips/{clipID}", s.handleToggleClip)
				})

				r.Route("/timeline", func(r chi.Router) {
					r.Get("/", s.handleTimelineGet)
					r.Post("/clips", s.handleTimelineAdd)
					r.Delete("/clips/{clipID}", s.handleTimelineRemove)
					r.Post("/clips/{clipID}/reorder", s.handleTimelineReorder)
					r.Post("/clips/{clipID}/trim", s.handleTimelineTrim)
					r.Delete("/clips/{clipID}/trim", s.handleTimelineClearTrim)
				})

				r.Route("/jobs", func(r chi.Router) {
					r.Post("/", s.handleJobSubmit)
					r.Get("/", s.handleJobList)
					r.Get("/{jobID}", s.handleJobGet)
					r.Post("/{jobID}/cancel", s.handleJobCancel)
				})

				r.Route("/uploads", func(r chi.Router) {
					r.Post("/", s.handleUploadStart)
					r.Get("/", s.handleUploadList)
					r.Get("/{uploadID}", s.handleUploadGet)
					r.Post("/{uploadID}/stop", s.handleUploadStop)
				})
			})
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/games", s.handleLibraryGames)
			r.Get("/clips", s.handleLibraryClips)
			r.Get("/clips/{clipID}", s.handleLibraryClip)
			r.Get("/scan", s.handleLibraryScanState)
		})

		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.handleResultList)
			r.Get("/{jobID}", s.handleResultGet)
			r.Delete("/{jobID}", s.handleResultDelete)
		})

		r.Route("/hosting", func(r chi.Router) {
			r.Get("/status", s.handleHostingStatus)
			r.Post("/auth/start", s.handleAuthStart)
			r.Post("/auth/complete", s.handleAuthComplete)
			r.Post("/auth/logout", s.handleAuthLogout)
			r.Get("/history", s.handleHostingHistory)
			r.Get("/quota", s.handleHostingQuota)
		})

		r.Get("/history/uploads", s.handleLocalUploadHistory)
	})

	return r
}
