package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ragcore_http_requests_total",
	Help: "Total number of HTTP requests labelled by path and status",
}, []string{"path", "status"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ragcore_http_request_duration_seconds",
	Help:    "HTTP request latency by path",
	Buckets: prometheus.DefBuckets,
}, []string{"path"})

var documentsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ragcore_documents_ingested_total",
	Help: "Total number of documents ingested",
})

var chunksStored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ragcore_chunks_stored_total",
	Help: "Total number of chunks stored",
})
