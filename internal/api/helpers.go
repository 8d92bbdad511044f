// Package api implements the bridge's HTTP REST API over the device session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/identity"
	"github.com/brianhealey/lyngdorf-go/internal/maintenance"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

const maxBodySize = 64 << 10

// Device yields the live session. *maintenance.Supervisor implements it.
type Device interface {
	Session() (*controller.Session, error)
	Status() maintenance.Status
}

// EventBus is the interface for subscribing to device updates.
type EventBus interface {
	Subscribe(id string) <-chan models.Update
	Unsubscribe(id string)
	SubscriberCount() int
	Dropped() uint64
}

// Policy holds bridge-side limits and presentation that the device itself
// does not provide.
type Policy struct {
	Zone2Enabled       bool
	Zone2MaxVolume     float64 // dB
	Zone2DefaultSource *int    // selected when zone 2 is switched on

	// SourceNames replaces the device's input names by index.
	SourceNames map[int]string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	dev      Device
	events   EventBus
	identity identity.Info
	policy   func() Policy
}

// apiError is the JSON error body.
type apiError struct {
	Status  int    `json:"-"`
	Kind    string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"` // device error code
}

func (e *apiError) Error() string { return e.Message }

func errBadRequest(format string, args ...any) *apiError {
	return &apiError{Status: http.StatusBadRequest, Kind: "bad_request", Message: fmt.Sprintf(format, args...)}
}

func errForbidden(msg string) *apiError {
	return &apiError{Status: http.StatusForbidden, Kind: "forbidden", Message: msg}
}

func errNotFound(msg string) *apiError {
	return &apiError{Status: http.StatusNotFound, Kind: "not_found", Message: msg}
}

// toAPIError maps client error kinds onto HTTP statuses.
func toAPIError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}
	e := &apiError{Kind: "internal", Message: err.Error(), Status: http.StatusInternalServerError}
	var me *models.Error
	if errors.As(err, &me) {
		e.Kind = me.Kind.String()
		e.Code = me.Code
	}
	switch models.KindOf(err) {
	case models.KindOutOfRange:
		e.Status = http.StatusBadRequest
	case models.KindUnsupported:
		e.Status = http.StatusUnprocessableEntity
	case models.KindDevice:
		e.Status = http.StatusBadGateway
	case models.KindTimeout:
		e.Status = http.StatusGatewayTimeout
	case models.KindConnect, models.KindIO, models.KindClosed:
		e.Status = http.StatusServiceUnavailable
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.Kind = "timeout"
			e.Status = http.StatusGatewayTimeout
		}
	}
	return e
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON error response.
func writeError(w http.ResponseWriter, err error) {
	e := toAPIError(err)
	writeJSON(w, e.Status, e)
}

// decodeBody decodes a size-limited JSON body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest("invalid JSON: %v", err)
	}
	return nil
}

// session returns the live session or writes a 503.
func (h *Handlers) session(w http.ResponseWriter) (*controller.Session, bool) {
	s, err := h.dev.Session()
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

// state returns the session's snapshot with source names overridden.
func (h *Handlers) state(s *controller.Session) models.Snapshot {
	return h.rename(s.Snapshot())
}

func (h *Handlers) rename(snap models.Snapshot) models.Snapshot {
	names := h.policy().SourceNames
	if len(names) == 0 {
		return snap
	}
	values := snap.Values()
	for _, f := range []models.Field{models.FieldSource, models.FieldZone2Source} {
		if v, ok := values[f]; ok {
			values[f] = renameSource(names, v)
		}
	}
	return models.NewSnapshot(snap.Revision, values)
}

// value applies source name overrides to a single field value.
func (h *Handlers) value(f models.Field, v models.Value) models.Value {
	if f != models.FieldSource && f != models.FieldZone2Source {
		return v
	}
	return renameSource(h.policy().SourceNames, v)
}

func renameSource(names map[int]string, v models.Value) models.Value {
	src, ok := v.(models.Indexed)
	if !ok {
		return v
	}
	if name, ok := names[src.Index]; ok {
		src.Name = name
	}
	return src
}
