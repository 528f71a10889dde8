package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Students    *StudentHandler
	Absences    *AbsenceHandler
	Occurrences *OccurrenceHandler
	Events      *EventsHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts every endpoint on api.
func RegisterRoutes(api gin.IRouter, h Handlers) {
	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/absence-process", h.Students.AbsenceProcess)
	students.GET("/:id/absence-processes", h.Students.AbsenceProcesses)
	students.GET("/:id/occurrences/summary", h.Students.OccurrenceSummary)

	absences := api.Group("/absence-actions")
	absences.GET("", h.Absences.List)
	absences.POST("", h.Absences.Create)
	absences.GET("/requirements", h.Absences.Requirements)
	absences.POST("/requirements", h.Absences.EvaluateRequirements)
	absences.GET("/export", h.Absences.Export)
	absences.GET("/:id", h.Absences.Get)
	absences.PATCH("/:id", h.Absences.Update)
	absences.DELETE("/:id", h.Absences.Delete)

	occurrences := api.Group("/occurrences")
	occurrences.GET("", h.Occurrences.List)
	occurrences.POST("", h.Occurrences.Create)
	occurrences.GET("/:id", h.Occurrences.Get)
	occurrences.PUT("/:id", h.Occurrences.Update)
	occurrences.DELETE("/:id", h.Occurrences.Delete)

	api.GET("/events", h.Events.Stream)
	api.GET("/metrics", h.Metrics.Prometheus)
	api.GET("/health", h.Metrics.Health)
	api.GET("/ready", h.Metrics.Ready)
}
