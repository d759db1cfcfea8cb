package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dindion/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady checks the data store with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	status := http.StatusOK

	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WithComponent(log.ComponentBackend).WarnContext(r.Context(), "Readiness check failed",
				log.FieldError, err)
			checks["store"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	ready := "ready"
	if status != http.StatusOK {
		ready = "not ready"
	}
	NewResponse().Status(status).Body(map[string]any{"status": ready, "checks": checks}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "counter", "Total HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_request_duration_avg_microseconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)
	metric("transactions_added_total", "counter", "Transactions records written through the API", s.transactionsAdded.Load())
	metric("event_streams_open", "gauge", "Open event streams", s.openStreams.Load())
	metric("auth_sessions_open", "gauge", "Open auth-state sessions", s.auth.ActiveSessions())
	metric("uptime_seconds", "gauge", "Server uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.startTime).Seconds()))
}
