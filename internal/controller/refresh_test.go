package controller_test

import (
	"context"
	"strings"
	"testing"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

func TestRequestFullRefreshMP60(t *testing.T) {
	s, _, _ := newSimSession(t, hardware.ModelMP60)

	if err := s.RequestFullRefresh(context.Background()); err != nil {
		t.Fatalf("RequestFullRefresh: %v", err)
	}
	snap := s.Snapshot()
	for _, f := range []models.Field{
		models.FieldDeviceName, models.FieldPower, models.FieldVolume,
		models.FieldTrimBass, models.FieldTrimHeight, models.FieldDialog, models.FieldStreamType,
	} {
		if !snap.Known(f) {
			t.Errorf("%s unknown after refresh", f)
		}
	}
	if v, ok := snap.Bool(models.FieldZone2Power); !ok || v {
		t.Errorf("zone2.power = %v (%v), want false", v, ok)
	}
	for _, f := range []models.Field{models.FieldZone2Volume, models.FieldZone2Mute, models.FieldZone2Source} {
		if snap.Known(f) {
			t.Errorf("%s known while zone 2 is in standby", f)
		}
	}
}

func TestRequestFullRefreshMP50SkipsMP60Fields(t *testing.T) {
	s, mock, _ := newSimSession(t, hardware.ModelMP50)

	if err := s.RequestFullRefresh(context.Background()); err != nil {
		t.Fatalf("RequestFullRefresh: %v", err)
	}
	for _, w := range mock.Writes() {
		if strings.HasPrefix(w, "!STREAMTYPE") || strings.HasPrefix(w, "!DTSDIALOG") {
			t.Errorf("MP-50 refresh sent %q", w)
		}
	}
	if s.Snapshot().Known(models.FieldStreamType) {
		t.Error("stream.type known on MP-50")
	}
}

func TestRequestFullRefreshPowerFirstInStandby(t *testing.T) {
	s, mock, _ := newSimSession(t, hardware.ModelMP60)
	ctx := context.Background()
	if err := s.SetPower(ctx, false); err != nil {
		t.Fatalf("SetPower(false): %v", err)
	}
	sent := len(mock.Writes())

	if err := s.RequestFullRefresh(ctx); err != nil {
		t.Fatalf("RequestFullRefresh: %v", err)
	}
	for _, w := range mock.Writes()[sent:] {
		if w == "!VOL?" {
			t.Errorf("volume queried while main zone is off")
		}
	}
}

func TestRequestFullRefreshClosedSession(t *testing.T) {
	s, _, _ := newSimSession(t, hardware.ModelMP60)
	s.Close()

	err := s.RequestFullRefresh(context.Background())
	if models.KindOf(err) != models.KindClosed {
		t.Errorf("RequestFullRefresh after Close = %v, want closed", err)
	}
}
