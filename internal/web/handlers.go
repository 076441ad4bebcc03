package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"syllabuscal/internal/export"
	"syllabuscal/internal/feed"
	"syllabuscal/internal/ics"
	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
	"syllabuscal/internal/pipeline"
	"syllabuscal/internal/recurrence"
	"syllabuscal/internal/validate"
)

// eventsRequest is the body shared by the endpoints that take canonical
// events. Start/End bound expansion; when absent the events' own span is
// used.
type eventsRequest struct {
	Events []model.Event `json:"events"`
	Expand bool          `json:"expand,omitempty"`
	Start  string        `json:"start,omitempty"`
	End    string        `json:"end,omitempty"`
}

type occurrenceRequest struct {
	Events     []model.Event `json:"events"`
	Occurrence model.Event   `json:"occurrence"`
}

type validateResponse struct {
	Problems []string `json:"problems"`
}

type feedResponse struct {
	Events   []model.Event `json:"events"`
	Warnings []string      `json:"warnings,omitempty"`
	BuiltAt  time.Time     `json:"builtAt"`
	Sources  int           `json:"sources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// POST /api/normalize?collapse=1&infer=0
//
// Body: raw extraction records, as {"events":[...]} or a bare array.
// infer defaults to the configured inference switch.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	raws, err := model.DecodeRawEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.app.PipelineOptions()
	q := r.URL.Query()
	opts.Collapse = queryBool(q.Get("collapse"), false)
	opts.Infer = queryBool(q.Get("infer"), opts.Infer)

	res := pipeline.Run(raws, opts)
	if res.Events == nil {
		res.Events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/detect collapses weekly groups.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvents(w, r)
	if !ok {
		return
	}
	events := recurrence.Detect(req.Events, s.app.PipelineOptions().RecurrencePolicy)
	writeJSON(w, http.StatusOK, model.Result{Events: events})
}

// POST /api/expand replaces series with their occurrences.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvents(w, r)
	if !ok {
		return
	}
	events, err := expand(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.Result{Events: events})
}

// POST /api/validate checks a single event.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	problems := validate.Event(ev)
	if problems == nil {
		problems = []string{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Problems: problems})
}

// POST /api/occurrence writes an edited occurrence back to its series.
func (s *Server) handleOccurrence(w http.ResponseWriter, r *http.Request) {
	var req occurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	events, err := recurrence.ApplyOccurrenceEdit(req.Events, req.Occurrence)
	switch {
	case errors.Is(err, recurrence.ErrSeriesNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeJSON(w, http.StatusOK, model.Result{Events: events})
	}
}

// POST /api/export/ics returns the calendar document as an attachment.
// Generation failures are reported as a single 422; nothing partial is
// written.
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvents(w, r)
	if !ok {
		return
	}
	events, err := expand(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := ics.Serialize(events, s.app.ExportOptions())
	if err != nil {
		appLog.Error("ics export failed", err, "events", len(events))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeAttachment(w, doc.ContentType+"; charset=utf-8", doc.Filename, doc.Data)
}

// POST /api/export/json returns the events verbatim as an attachment.
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvents(w, r)
	if !ok {
		return
	}
	events, err := expand(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := export.JSON(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAttachment(w, export.JSONContentType, export.JSONFilename, data)
}

// POST /api/import/ics reads a calendar document back into events.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	events, err := ics.ParseDocument(body, s.app.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.Result{Events: events})
}

// GET /api/feed returns the latest feed snapshot.
func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.app.Feed.Current()
	if errors.Is(err, feed.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Events:   snap.Result.Events,
		Warnings: snap.Result.Warnings,
		BuiltAt:  snap.BuiltAt,
		Sources:  snap.Sources,
	})
}

// POST /api/refresh rebuilds the feed now.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.RefreshFeed(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Events:   snap.Result.Events,
		Warnings: snap.Result.Warnings,
		BuiltAt:  snap.BuiltAt,
		Sources:  snap.Sources,
	})
}

// GET /calendar.ics serves the feed for calendar subscriptions.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.app.Feed.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Content-Type", snap.Calendar.ContentType+"; charset=utf-8")
	w.Header().Set("Last-Modified", snap.BuiltAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Calendar.Data)
}

func decodeEvents(w http.ResponseWriter, r *http.Request) (eventsRequest, bool) {
	var req eventsRequest
	body, ok := readBody(w, r)
	if !ok {
		return req, false
	}
	// A bare array is accepted as {"events": [...]}.
	if firstByte(body) == '[' {
		var err error
		if req.Events, err = model.DecodeEvents(body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return req, false
		}
		return req, true
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return req, false
	}
	return req, true
}

// readBody reads the whole request body. Only a body over the size limit is
// reported as 413; any other read failure is the client's fault.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	} else {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
	}
	return nil, false
}

// expand applies the optional expansion requested in req.
func expand(req eventsRequest) ([]model.Event, error) {
	if !req.Expand {
		return req.Events, nil
	}
	var (
		rng recurrence.Range
		err error
	)
	switch {
	case req.Start != "" && req.End != "":
		rng, err = recurrence.NewRange(req.Start, req.End)
		if err != nil {
			return nil, err
		}
	case req.Start == "" && req.End == "":
		var ok bool
		if rng, ok = recurrence.Cover(req.Events); !ok {
			return req.Events, nil
		}
	default:
		return nil, fmt.Errorf("start and end must be given together")
	}
	return recurrence.Expand(req.Events, rng), nil
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func queryBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}
