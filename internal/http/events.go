package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dindion/internal/log"
	"dindion/internal/services"
)

// handleEvents streams the summary state of the signed-in user as
// server-sent events. Every store snapshot produces one "state" event; the
// stream ends with a "signout" event when the session is signed out or expires.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	sess, err := s.auth.Session(SessionToken(r))
	if err != nil {
		s.fail(w, r, err, log.OpSubscribe, "")
		return
	}
	defer sess.Close()

	rc := http.NewResponseController(w)
	// Streams outlive the server's read and write deadlines.
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	view := services.NewView(s.opts.Location, s.logger.Logger)
	view.SetFilter(sel.Filter)
	if !sel.Month.IsZero() {
		view.SetMonth(sel.Month)
	}

	// Only the newest update matters; a slow client skips intermediate states.
	updates := make(chan services.Update, 1)
	emit := func(u services.Update) {
		select {
		case <-updates:
		default:
		}
		updates <- u
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.ErrorContext(r.Context(), "Event stream not supported", log.FieldError, err)
		return
	}

	uid := identityFrom(r.Context()).UID
	ctx := r.Context()
	logger := s.logger.WithComponent(log.ComponentEvents).With(log.FieldUserID, uid)
	watcher := services.NewWatcher(s.tree, view, emit, s.logger.Logger)
	watcher.Start(ctx, sess)
	defer watcher.Stop()

	s.openStreams.Add(1)
	defer s.openStreams.Add(-1)
	logger.InfoContext(ctx, "Event stream opened")
	defer logger.InfoContext(ctx, "Event stream closed")

	heartbeat := time.NewTicker(s.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case u := <-updates:
			seq++
			if u.Identity == nil {
				_ = writeEvent(w, seq, "signout", struct{}{})
				_ = rc.Flush()
				return
			}
			if err := writeEvent(w, seq, "state", toStateJSON(u.State)); err != nil {
				logger.WarnContext(ctx, "Failed to write event", log.FieldError, err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one server-sent event with a single-line JSON payload.
func writeEvent(w io.Writer, id uint64, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, name, data)
	return err
}
