package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/treewatch/internal/progress"
	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/report"
	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// nodeResponse is the JSON response for the node detail endpoint.
type nodeResponse struct {
	Node tree.Node       `json:"node"`
	View render.NodeView `json:"view"`
	HTML string          `json:"html"`
}

type selectRequest struct {
	ID string `json:"id"`
}

// runRequest starts a run from the page or the API.
type runRequest struct {
	Question      string   `json:"question"`
	Compare       bool     `json:"compare"`
	MaxIterations int      `json:"max_iterations"`
	MaxDepth      int      `json:"max_depth"`
	VideoIDs      []string `json:"video_ids"`
}

type runResponse struct {
	RequestID  string `json:"request_id"`
	Generation uint64 `json:"generation"`
}

func (d *Dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.sess.State())
}

func (d *Dashboard) handleTree(w http.ResponseWriter, r *http.Request) {
	selected, _ := d.sess.Selected()
	writeJSON(w, http.StatusOK, render.Paint(d.sess.Hierarchy(), selected))
}

func (d *Dashboard) handleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, ok := d.sess.Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found: " + id})
		return
	}
	view, _ := render.View(d.sess.Hierarchy(), id)

	html, err := report.NodeHTML(d.md, n)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, nodeResponse{Node: n, View: view, HTML: html})
}

func (d *Dashboard) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := d.selectNode(req.ID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"selected": req.ID})
}

func (d *Dashboard) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ticket, err := d.startRun(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrEmptyQuestion) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, runResponse{RequestID: ticket.Request.RequestID, Generation: ticket.Generation})
}

func (d *Dashboard) handleLoadDataset(w http.ResponseWriter, r *http.Request) {
	// The load outlives the request; its result arrives as a state change.
	if err := d.sess.LoadDataset(context.WithoutCancel(r.Context())); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

// handleReport serves the current run as a standalone HTML page.
func (d *Dashboard) handleReport(w http.ResponseWriter, r *http.Request) {
	st := d.sess.State()
	var buf bytes.Buffer
	if err := d.report.Write(&buf, st, d.sess.Hierarchy(), progress.Summary(st)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (d *Dashboard) selectNode(id string) error {
	if err := d.sess.Select(id); err != nil {
		return err
	}
	d.hub.Select(id)
	return nil
}

func (d *Dashboard) startRun(ctx context.Context, req runRequest) (session.Ticket, error) {
	ro := session.RunOptions{
		MaxIterations: req.MaxIterations,
		MaxDepth:      req.MaxDepth,
		VideoIDs:      req.VideoIDs,
	}
	if req.Compare {
		return d.sess.Compare(ctx, req.Question, ro)
	}
	return d.sess.Run(ctx, req.Question, ro)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
