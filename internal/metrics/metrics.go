package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_document_uploads_total",
			Help: "Accepted document uploads by document type",
		},
		[]string{"doc_type"},
	)

	ThrottledUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_document_uploads_throttled_total",
			Help: "Uploads refused because the re-submission window was still open",
		},
		[]string{"doc_type"},
	)

	DocumentReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_document_reviews_total",
			Help: "Review decisions; rollback is true when a rejection restored the previous file",
		},
		[]string{"decision", "rollback"},
	)

	UnlockRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_unlock_requests_total",
			Help: "Unlock requests by lifecycle event (filed, approved, rejected)",
		},
		[]string{"event"},
	)
)
