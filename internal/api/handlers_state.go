package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/identity"
	"github.com/brianhealey/lyngdorf-go/internal/maintenance"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Info is the response of GET /api/info.
type Info struct {
	Bridge      identity.Info      `json:"bridge"`
	Uptime      string             `json:"uptime"`
	Connection  maintenance.Status `json:"connection"`
	Session     string             `json:"session,omitempty"`
	Model       *hardware.Profile  `json:"model,omitempty"`
	Stats       *controller.Stats  `json:"stats,omitempty"`
	Subscribers int                `json:"subscribers"`
	Dropped     uint64             `json:"dropped"`
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.dev.Session(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	info := Info{
		Bridge:     h.identity,
		Uptime:     h.identity.Uptime().String(),
		Connection: h.dev.Status(),
	}
	if h.events != nil {
		info.Subscribers = h.events.SubscriberCount()
		info.Dropped = h.events.Dropped()
	}
	if s, err := h.dev.Session(); err == nil {
		stats := s.Stats()
		info.Session = s.String()
		info.Model = s.Profile()
		info.Stats = &stats
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) getModels(w http.ResponseWriter, r *http.Request) {
	var out []*hardware.Profile
	for _, id := range hardware.SupportedModels() {
		p, err := hardware.LookupProfile(id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

// getField returns one cached value. With ?fresh=true the device is asked
// first.
func (h *Handlers) getField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	f := models.Field(chi.URLParam(r, "field"))

	if r.URL.Query().Get("fresh") == "true" {
		v, err := s.Query(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"field": f, "value": h.value(f, v)})
		return
	}

	v, known := h.state(s).Get(f)
	if !known {
		writeError(w, errNotFound("field "+string(f)+" has not been reported"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": f, "value": v})
}

// refresh re-reads every field. Per-field failures do not fail the request;
// they are listed next to the refreshed state.
func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	err := s.RequestFullRefresh(r.Context())
	if err != nil && (s.Err() != nil || r.Context().Err() != nil) {
		writeError(w, err)
		return
	}
	var failures []string
	if err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				failures = append(failures, e.Error())
			}
		} else {
			failures = append(failures, err.Error())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.state(s), "failures": failures})
}
