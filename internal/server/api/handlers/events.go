package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/progress"
	"github.com/joefoxing/lyriq/internal/core/service"
)

type EventsHandler struct {
	svc *service.Service
}

func NewEventsHandler(svc *service.Service) *EventsHandler {
	return &EventsHandler{svc: svc}
}

// Stream serves a job's progress as server-sent events. The client first
// receives a snapshot of the current durable state, then live events. The
// stream ends after one terminal event, so a client that reconnects after
// completion gets exactly one terminal event from the snapshot.
func (h *EventsHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()

	sub, snap, err := h.svc.Subscribe(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return c.JSON(http.StatusNotFound,
				map[string]any{"success": false, "error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError,
			map[string]any{"success": false, "error": err.Error()})
	}
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// The snapshot covers everything published before the subscription
	// attached; live events at or below JoinedSeq duplicate it and are
	// skipped.
	snapEv := snapshotEvent(snap, sub.JoinedSeq)
	if err := writeEvent(res, snapEv); err != nil {
		return nil
	}
	if snapEv.Terminal() {
		return nil
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if ev.Seq <= sub.JoinedSeq {
				continue
			}
			if err := writeEvent(res, ev); err != nil {
				return nil
			}
			if ev.Terminal() {
				return nil
			}
		}
	}
}

func snapshotEvent(j *job.Job, seq uint64) progress.Event {
	ev := progress.Event{
		Status:   j.Status,
		Stage:    j.Stage,
		Progress: j.Progress,
		Seq:      seq,
	}
	switch {
	case j.Status == job.StatusCompleted:
		ev.Message = "lyrics ready"
	case j.Error != nil:
		ev.Message = j.Error.Message
	}
	return ev
}

func writeEvent(res *echo.Response, ev progress.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: progress\ndata: %s\n\n", data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
