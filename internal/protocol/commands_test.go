package protocol_test

import (
	"errors"
	"math"
	"testing"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

func TestCommandEncoding(t *testing.T) {
	mp50 := mustProfile(t, hardware.ModelMP50)
	mp60 := mustProfile(t, hardware.ModelMP60)
	must := func(c protocol.Command, err error) protocol.Command {
		t.Helper()
		if err != nil {
			t.Fatalf("builder: %v", err)
		}
		return c
	}
	off := -20.0

	tests := []struct {
		cmd   protocol.Command
		text  string
		reply string
	}{
		{protocol.Power(true), "!POWERONMAIN", "POWER"},
		{protocol.Power(false), "!POWEROFFMAIN", "POWER"},
		{protocol.Zone2Power(true), "!POWERONZONE2", "POWERZONE2"},
		{must(protocol.Volume(mp50, -10.5)), "!VOL(-105)", "VOL"},
		{must(protocol.Volume(mp60, 24)), "!VOL(240)", "VOL"},
		{must(protocol.Volume(mp50, -99.9)), "!VOL(-999)", "VOL"},
		{must(protocol.Zone2Volume(mp50, -40)), "!ZVOL(-400)", "ZVOL"},
		{must(protocol.VolumeStep(true, 0)), "!VOL+", "VOL"},
		{must(protocol.VolumeStep(false, 2.5)), "!VOL-(25)", "VOL"},
		{must(protocol.MaxVolume(mp50, 10)), "!MAXVOL(100)", "MAXVOL"},
		{must(protocol.DefaultVolume(mp50, nil)), "!DEFVOL(OFF)", "DEFVOL"},
		{must(protocol.DefaultVolume(mp50, &off)), "!DEFVOL(-200)", "DEFVOL"},
		{protocol.Mute(true), "!MUTEON", "MUTE"},
		{protocol.MuteToggle(), "!MUTE", "MUTE"},
		{protocol.Zone2Mute(false), "!ZMUTEOFF", "ZMUTE"},
		{must(protocol.Source(mp50, 3)), "!SRC(3)", "SRC"},
		{must(protocol.Zone2Source(mp50, 0)), "!ZSRC(0)", "ZSRC"},
		{protocol.SourceStep(true), "!SRC+", "SRC"},
		{must(protocol.SourceOffset(mp50, -2.5)), "!SRCOFF(-25)", "SRCOFF"},
		{must(protocol.RoomPerfectPosition(hardware.RoomPerfectGlobal)), "!RPFOC(9)", "RPFOC"},
		{must(protocol.RoomPerfectVoicing(2)), "!RPVOI(2)", "RPVOI"},
		{must(protocol.AudioMode(1)), "!AUDMODE(1)", "AUDMODE"},
		{must(protocol.Trim(mp50, hardware.ChannelTreble, -1.5)), "!TRIMTREB(-15)", "TRIMTREB"},
		{must(protocol.LipSync(mp50, 120)), "!LIPSYNC(120)", "LIPSYNC"},
		{protocol.Loudness(true), "!LOUDNESS(1)", "LOUDNESS"},
		{must(protocol.Dialog(mp60, 6)), "!DTSDIALOG(6)", "DTSDIALOG"},
		{must(protocol.DialogStep(mp60, false)), "!DTSDIALOGDN", "DTSDIALOG"},
		{must(protocol.Verbosity(1)), "!VERB(1)", "VERB"},
		{protocol.Ping(), "!PING?", "PONG"},
		{must(protocol.Query(mp50, models.FieldVolume)), "!VOL?", "VOL"},
		{must(protocol.Query(mp60, models.FieldStreamType)), "!STREAMTYPE?", "STREAMTYPE"},
	}
	for _, tt := range tests {
		if tt.cmd.Text != tt.text {
			t.Errorf("Text = %q, want %q", tt.cmd.Text, tt.text)
		}
		if tt.cmd.Reply != tt.reply {
			t.Errorf("%s Reply = %q, want %q", tt.text, tt.cmd.Reply, tt.reply)
		}
		if b := tt.cmd.Bytes(); b[len(b)-1] != protocol.Terminator {
			t.Errorf("%s Bytes() not terminated", tt.text)
		}
	}
}

func TestVolumeCommandsUseVolumeSpacing(t *testing.T) {
	p := mustProfile(t, hardware.ModelMP50)
	c, _ := protocol.Volume(p, -20)
	if !c.Volume {
		t.Error("Volume command not marked for volume spacing")
	}
	if protocol.Mute(true).Volume {
		t.Error("Mute command marked for volume spacing")
	}
}

func TestCommandBounds(t *testing.T) {
	mp50 := mustProfile(t, hardware.ModelMP50)
	mp60 := mustProfile(t, hardware.ModelMP60)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"volume above MP-50 ceiling", second(protocol.Volume(mp50, 20.1)), models.ErrOutOfRange},
		{"volume above MP-60 ceiling", second(protocol.Volume(mp60, 24.1)), models.ErrOutOfRange},
		{"volume below floor", second(protocol.Volume(mp60, -100)), models.ErrOutOfRange},
		{"volume rounds down to MP-50 ceiling", second(protocol.Volume(mp50, 20.04)), models.ErrOutOfRange},
		{"volume rounds up to floor", second(protocol.Volume(mp50, -99.94)), models.ErrOutOfRange},
		{"trim rounds to edge", second(protocol.Trim(mp50, hardware.ChannelBass, 12.01)), models.ErrOutOfRange},
		{"volume NaN", second(protocol.Volume(mp50, math.NaN())), models.ErrOutOfRange},
		{"source negative", second(protocol.Source(mp50, -1)), models.ErrOutOfRange},
		{"source too high", second(protocol.Source(mp50, mp50.MaxSource+1)), models.ErrOutOfRange},
		{"focus 10", second(protocol.RoomPerfectPosition(10)), models.ErrOutOfRange},
		{"voicing negative", second(protocol.RoomPerfectVoicing(-1)), models.ErrOutOfRange},
		{"trim beyond range", second(protocol.Trim(mp50, hardware.ChannelLFE, 10.1)), models.ErrOutOfRange},
		{"trim unknown channel", second(protocol.Trim(mp50, hardware.Channel("X"), 0)), models.ErrUnsupported},
		{"lipsync over", second(protocol.LipSync(mp50, 501)), models.ErrOutOfRange},
		{"dialog on MP-50", second(protocol.Dialog(mp50, 1)), models.ErrUnsupported},
		{"dialog step on MP-50", second(protocol.DialogStep(mp50, true)), models.ErrUnsupported},
		{"dialog level 7", second(protocol.Dialog(mp60, 7)), models.ErrOutOfRange},
		{"verbosity 3", second(protocol.Verbosity(3)), models.ErrOutOfRange},
		{"step zero-ish", second(protocol.VolumeStep(true, 0.01)), models.ErrOutOfRange},
		{"stream query on MP-50", second(protocol.Query(mp50, models.FieldStreamType)), models.ErrUnsupported},
		{"query unknown field", second(protocol.Query(mp60, models.Field("bogus"))), models.ErrUnsupported},
		{"query connection", second(protocol.Query(mp60, models.FieldConnection)), models.ErrUnsupported},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, tt.err, tt.want)
		}
	}
}

func second(_ protocol.Command, err error) error { return err }

func TestQueryCoversRefreshFields(t *testing.T) {
	for _, id := range hardware.SupportedModels() {
		p := mustProfile(t, id)
		fields := append(protocol.MainFields(p), protocol.Zone2Fields()...)
		for _, f := range fields {
			if _, err := protocol.Query(p, f); err != nil {
				t.Errorf("%s: Query(%s): %v", id, f, err)
			}
		}
	}
}

func TestTenthsConversion(t *testing.T) {
	for _, db := range []float64{-99.9, -10.5, 0, 0.1, 12, 24} {
		if got := protocol.FromTenths(protocol.ToTenths(db)); got != db {
			t.Errorf("FromTenths(ToTenths(%v)) = %v", db, got)
		}
	}
}
