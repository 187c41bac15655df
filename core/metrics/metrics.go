// Package metrics holds the Prometheus collectors of the learning core.
//
// Collectors register on the default registry; the API server exposes it under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carosello75/courseconnect/core"
)

const namespace = "courseconnect"

var (
	// EnrollmentsTotal counts enrollments created.
	EnrollmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Total number of course enrollments created",
		},
	)

	// LessonCompletionsTotal counts lesson progress records created.
	LessonCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_completions_total",
			Help:      "Total number of lessons marked completed",
		},
	)

	// CourseCompletionsTotal counts enrollments reaching 100%.
	CourseCompletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "course_completions_total",
			Help:      "Total number of courses completed by enrolled users",
		},
	)

	// NotificationsCreatedTotal counts notification records written, by type.
	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notifications created",
		},
		[]string{"type"},
	)

	// NotificationFailuresTotal counts events whose notifications could not be written, by type.
	NotificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Total number of notification events that failed and were dropped",
		},
		[]string{"type"},
	)

	// StorageTransientErrorsTotal counts operations that failed on a storage error, by operation.
	StorageTransientErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_transient_errors_total",
			Help:      "Total number of operations aborted by a transient storage failure",
		},
		[]string{"operation"},
	)
)

// Boundary applies core.Boundary to err and counts against operation the failures it turns transient.
// Errors that were already transient are counted where they were classified.
func Boundary(operation string, err error, domainErrs ...error) error {
	if err == nil || core.IsTransient(err) {
		return err
	}
	err = core.Boundary(err, domainErrs...)
	if core.IsTransient(err) {
		StorageTransientErrorsTotal.WithLabelValues(operation).Inc()
	}
	return err
}
