package main

import (
	"net/http"

	"relayq/internal/metrics"
)

// handleMetrics dumps the in-memory metrics registry as JSON. This is
// a local admin endpoint, not a scrape target; the snapshot includes
// counters, gauges and timer percentiles.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
}
