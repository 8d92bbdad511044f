package api

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

var maxZone2Unlimited = math.Inf(1)

// zone2Step is the device's own volume step, used to predict where an
// unsized volume-up lands.
const zone2Step = 0.5

func (h *Handlers) patchMain(w http.ResponseWriter, r *http.Request) {
	var upd models.MainUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	if upd.Volume != nil && upd.VolumeDelta != nil {
		writeError(w, errBadRequest("volume and volume_delta are mutually exclusive"))
		return
	}
	if upd.DefaultVolume != nil && upd.DefaultVolumeOff {
		writeError(w, errBadRequest("default_volume and default_volume_off are mutually exclusive"))
		return
	}
	s, ok := h.session(w)
	if !ok {
		return
	}
	if err := applyMain(r.Context(), s, upd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

func applyMain(ctx context.Context, s *controller.Session, u models.MainUpdate) error {
	if u.Power != nil {
		if err := s.SetPower(ctx, *u.Power); err != nil {
			return err
		}
		if !*u.Power {
			return nil
		}
	}
	if u.Source != nil {
		if err := s.SetSource(ctx, *u.Source); err != nil {
			return err
		}
	}
	if u.SourceOffset != nil {
		if err := s.SetSourceOffset(ctx, *u.SourceOffset); err != nil {
			return err
		}
	}
	if u.MaxVolume != nil {
		if err := s.SetMaxVolume(ctx, *u.MaxVolume); err != nil {
			return err
		}
	}
	if u.DefaultVolume != nil || u.DefaultVolumeOff {
		if err := s.SetDefaultVolume(ctx, u.DefaultVolume); err != nil {
			return err
		}
	}
	if u.Volume != nil {
		if err := s.SetVolume(ctx, *u.Volume); err != nil {
			return err
		}
	}
	if u.VolumeDelta != nil && *u.VolumeDelta != 0 {
		var err error
		if d := *u.VolumeDelta; d > 0 {
			err = s.VolumeUp(ctx, d)
		} else {
			err = s.VolumeDown(ctx, -d)
		}
		if err != nil {
			return err
		}
	}
	if u.Mute != nil {
		if err := s.SetMute(ctx, *u.Mute); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) patchZone2(w http.ResponseWriter, r *http.Request) {
	var upd models.Zone2Update
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	if upd.Volume != nil && upd.VolumeDelta != nil {
		writeError(w, errBadRequest("volume and volume_delta are mutually exclusive"))
		return
	}
	pol := h.policy()
	if !pol.Zone2Enabled {
		writeError(w, errForbidden("zone 2 is disabled in the bridge settings"))
		return
	}
	s, ok := h.session(w)
	if !ok {
		return
	}
	if err := applyZone2(r.Context(), s, pol, upd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

func applyZone2(ctx context.Context, s *controller.Session, pol Policy, u models.Zone2Update) error {
	if u.Power != nil {
		if err := s.SetZone2Power(ctx, *u.Power); err != nil {
			return err
		}
		if !*u.Power {
			return nil
		}
	}
	if u.Source != nil {
		if err := s.SetZone2Source(ctx, *u.Source); err != nil {
			return err
		}
	} else if u.Power != nil && pol.Zone2DefaultSource != nil {
		// A failed default source leaves zone 2 on at whatever it had.
		if err := s.SetZone2Source(ctx, *pol.Zone2DefaultSource); err != nil {
			slog.Warn("api: could not select zone 2 default source", "source", *pol.Zone2DefaultSource, "err", err)
		}
	}
	if u.Volume != nil {
		v := *u.Volume
		if v > pol.Zone2MaxVolume {
			slog.Debug("api: zone 2 volume capped", "requested", v, "max", pol.Zone2MaxVolume)
			v = pol.Zone2MaxVolume
		}
		if err := s.SetZone2Volume(ctx, v); err != nil {
			return err
		}
	}
	if u.VolumeDelta != nil && *u.VolumeDelta != 0 {
		var err error
		if d := *u.VolumeDelta; d > 0 {
			err = zone2Up(ctx, s, pol, d)
		} else {
			err = s.Zone2VolumeDown(ctx, -d)
		}
		if err != nil {
			return err
		}
	}
	if u.Mute != nil {
		if err := s.SetZone2Mute(ctx, *u.Mute); err != nil {
			return err
		}
	}
	return nil
}

// zone2Up raises zone 2 by amount dB (the device step when zero) without
// passing the bridge's zone 2 ceiling.
func zone2Up(ctx context.Context, s *controller.Session, pol Policy, amount float64) error {
	if math.IsInf(pol.Zone2MaxVolume, 1) {
		return s.Zone2VolumeUp(ctx, amount)
	}
	cur, ok := s.Snapshot().Float(models.FieldZone2Volume)
	if !ok {
		v, err := s.Query(ctx, models.FieldZone2Volume)
		if err != nil {
			return err
		}
		cur, _ = v.(float64)
	}
	step := amount
	if step == 0 {
		step = zone2Step
	}
	if cur+step > pol.Zone2MaxVolume {
		if cur >= pol.Zone2MaxVolume {
			return nil
		}
		return s.SetZone2Volume(ctx, pol.Zone2MaxVolume)
	}
	return s.Zone2VolumeUp(ctx, amount)
}

func (h *Handlers) patchAudio(w http.ResponseWriter, r *http.Request) {
	var u models.AudioUpdate
	if err := decodeBody(r, &u); err != nil {
		writeError(w, err)
		return
	}
	s, ok := h.session(w)
	if !ok {
		return
	}
	ctx := r.Context()
	var steps []func() error
	if u.RoomPerfectPosition != nil {
		steps = append(steps, func() error { return s.SetRoomPerfectPosition(ctx, *u.RoomPerfectPosition) })
	}
	if u.RoomPerfectVoicing != nil {
		steps = append(steps, func() error { return s.SetRoomPerfectVoicing(ctx, *u.RoomPerfectVoicing) })
	}
	if u.AudioMode != nil {
		steps = append(steps, func() error { return s.SetAudioMode(ctx, *u.AudioMode) })
	}
	if u.LipSync != nil {
		steps = append(steps, func() error { return s.SetLipSyncDelay(ctx, *u.LipSync) })
	}
	if u.Loudness != nil {
		steps = append(steps, func() error { return s.SetLoudness(ctx, *u.Loudness) })
	}
	if u.Dialog != nil {
		steps = append(steps, func() error { return s.SetDialogControl(ctx, *u.Dialog) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

func (h *Handlers) patchTrims(w http.ResponseWriter, r *http.Request) {
	var u models.TrimUpdate
	if err := decodeBody(r, &u); err != nil {
		writeError(w, err)
		return
	}
	s, ok := h.session(w)
	if !ok {
		return
	}

	byName := make(map[string]func(float64) error)
	for _, ch := range s.Profile().Channels() {
		name := strings.TrimPrefix(string(protocol.TrimField(ch)), "trim.")
		byName[name] = func(db float64) error { return s.SetChannelTrim(r.Context(), ch, db) }
	}
	names := slices.Sorted(maps.Keys(u))
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			writeError(w, errBadRequest("unknown trim channel %q", name))
			return
		}
	}
	for _, name := range names {
		if err := byName[name](u[name]); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

// action runs a one-shot command. ?amount= sizes the volume steps in dB.
func (h *Handlers) action(w http.ResponseWriter, r *http.Request) {
	var amount float64
	if a := r.URL.Query().Get("amount"); a != "" {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil || v < 0 {
			writeError(w, errBadRequest("invalid amount %q", a))
			return
		}
		amount = v
	}

	name := chi.URLParam(r, "action")
	pol := h.policy()
	if strings.HasPrefix(name, "zone2_") && !pol.Zone2Enabled {
		writeError(w, errForbidden("zone 2 is disabled in the bridge settings"))
		return
	}

	ctx := r.Context()
	var run func(s *controller.Session) error
	switch name {
	case "volume_up":
		run = func(s *controller.Session) error { return s.VolumeUp(ctx, amount) }
	case "volume_down":
		run = func(s *controller.Session) error { return s.VolumeDown(ctx, amount) }
	case "mute_toggle":
		run = func(s *controller.Session) error { return s.ToggleMute(ctx) }
	case "source_next":
		run = func(s *controller.Session) error { return s.NextSource(ctx) }
	case "source_prev":
		run = func(s *controller.Session) error { return s.PrevSource(ctx) }
	case "dialog_up":
		run = func(s *controller.Session) error { return s.DialogUp(ctx) }
	case "dialog_down":
		run = func(s *controller.Session) error { return s.DialogDown(ctx) }
	case "zone2_volume_up":
		run = func(s *controller.Session) error { return zone2Up(ctx, s, pol, amount) }
	case "zone2_volume_down":
		run = func(s *controller.Session) error { return s.Zone2VolumeDown(ctx, amount) }
	case "zone2_mute_toggle":
		run = func(s *controller.Session) error { return s.ToggleZone2Mute(ctx) }
	case "ping":
		run = func(s *controller.Session) error { return s.Ping(ctx) }
	default:
		writeError(w, errNotFound("unknown action "+name))
		return
	}

	s, ok := h.session(w)
	if !ok {
		return
	}
	if err := run(s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

func (h *Handlers) raw(w http.ResponseWriter, r *http.Request) {
	var req models.RawCommand
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !strings.HasPrefix(req.Command, "!") || strings.ContainsAny(req.Command, "\r\n") {
		writeError(w, errBadRequest("command must be a single line starting with '!'"))
		return
	}
	s, ok := h.session(w)
	if !ok {
		return
	}
	msg, err := s.SendRaw(r.Context(), req.Command, req.Reply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RawReply{
		Kind:  msg.Kind.String(),
		Token: msg.Token,
		Field: msg.Field,
		Value: msg.Value,
		Code:  msg.Code,
		Raw:   msg.Raw,
	})
}
