package controller

import (
	"context"
	"fmt"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/protocol"
)

// exec sends a command built by a protocol builder. Builder errors (range or
// model checks) are returned before anything reaches the wire.
func (s *Session) exec(ctx context.Context, cmd protocol.Command, err error) error {
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, cmd)
	return err
}

// SetPower switches the main zone on or off.
func (s *Session) SetPower(ctx context.Context, on bool) error {
	return s.exec(ctx, protocol.Power(on), nil)
}

// SetVolume sets the main volume in dB, rounded to 0.1 dB.
func (s *Session) SetVolume(ctx context.Context, db float64) error {
	cmd, err := protocol.Volume(s.profile, db)
	return s.exec(ctx, cmd, err)
}

// VolumeUp raises the main volume by amount dB, or by the device's own step
// when amount is zero.
func (s *Session) VolumeUp(ctx context.Context, amount float64) error {
	cmd, err := protocol.VolumeStep(true, amount)
	return s.exec(ctx, cmd, err)
}

// VolumeDown lowers the main volume; see VolumeUp.
func (s *Session) VolumeDown(ctx context.Context, amount float64) error {
	cmd, err := protocol.VolumeStep(false, amount)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetMute(ctx context.Context, on bool) error {
	return s.exec(ctx, protocol.Mute(on), nil)
}

func (s *Session) ToggleMute(ctx context.Context) error {
	return s.exec(ctx, protocol.MuteToggle(), nil)
}

// SetSource selects the main source by device index.
func (s *Session) SetSource(ctx context.Context, idx int) error {
	cmd, err := protocol.Source(s.profile, idx)
	return s.exec(ctx, cmd, err)
}

func (s *Session) NextSource(ctx context.Context) error {
	return s.exec(ctx, protocol.SourceStep(true), nil)
}

func (s *Session) PrevSource(ctx context.Context) error {
	return s.exec(ctx, protocol.SourceStep(false), nil)
}

// SetSourceOffset sets the volume offset applied to the current source.
func (s *Session) SetSourceOffset(ctx context.Context, db float64) error {
	cmd, err := protocol.SourceOffset(s.profile, db)
	return s.exec(ctx, cmd, err)
}

// SetMaxVolume sets the volume ceiling stored in the device.
func (s *Session) SetMaxVolume(ctx context.Context, db float64) error {
	cmd, err := protocol.MaxVolume(s.profile, db)
	return s.exec(ctx, cmd, err)
}

// SetDefaultVolume sets the power-on volume. nil disables it.
func (s *Session) SetDefaultVolume(ctx context.Context, db *float64) error {
	cmd, err := protocol.DefaultVolume(s.profile, db)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetZone2Power(ctx context.Context, on bool) error {
	return s.exec(ctx, protocol.Zone2Power(on), nil)
}

func (s *Session) SetZone2Volume(ctx context.Context, db float64) error {
	cmd, err := protocol.Zone2Volume(s.profile, db)
	return s.exec(ctx, cmd, err)
}

func (s *Session) Zone2VolumeUp(ctx context.Context, amount float64) error {
	cmd, err := protocol.Zone2VolumeStep(true, amount)
	return s.exec(ctx, cmd, err)
}

func (s *Session) Zone2VolumeDown(ctx context.Context, amount float64) error {
	cmd, err := protocol.Zone2VolumeStep(false, amount)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetZone2Mute(ctx context.Context, on bool) error {
	return s.exec(ctx, protocol.Zone2Mute(on), nil)
}

func (s *Session) ToggleZone2Mute(ctx context.Context) error {
	return s.exec(ctx, protocol.Zone2MuteToggle(), nil)
}

func (s *Session) SetZone2Source(ctx context.Context, idx int) error {
	cmd, err := protocol.Zone2Source(s.profile, idx)
	return s.exec(ctx, cmd, err)
}

// SetRoomPerfectPosition selects bypass (hardware.RoomPerfectBypass), a
// focus position 1-8 or global (hardware.RoomPerfectGlobal).
func (s *Session) SetRoomPerfectPosition(ctx context.Context, pos int) error {
	cmd, err := protocol.RoomPerfectPosition(pos)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetRoomPerfectVoicing(ctx context.Context, idx int) error {
	cmd, err := protocol.RoomPerfectVoicing(idx)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetAudioMode(ctx context.Context, idx int) error {
	cmd, err := protocol.AudioMode(idx)
	return s.exec(ctx, cmd, err)
}

// SetChannelTrim sets one channel trim in dB. Channels the model does not
// have fail with an unsupported error.
func (s *Session) SetChannelTrim(ctx context.Context, ch hardware.Channel, db float64) error {
	cmd, err := protocol.Trim(s.profile, ch, db)
	return s.exec(ctx, cmd, err)
}

// SetLipSyncDelay sets the audio delay in milliseconds.
func (s *Session) SetLipSyncDelay(ctx context.Context, ms int) error {
	cmd, err := protocol.LipSync(s.profile, ms)
	return s.exec(ctx, cmd, err)
}

func (s *Session) SetLoudness(ctx context.Context, on bool) error {
	return s.exec(ctx, protocol.Loudness(on), nil)
}

// SetDialogControl sets the DTS Dialog Control level. MP-60 only.
func (s *Session) SetDialogControl(ctx context.Context, level int) error {
	cmd, err := protocol.Dialog(s.profile, level)
	return s.exec(ctx, cmd, err)
}

func (s *Session) DialogUp(ctx context.Context) error {
	cmd, err := protocol.DialogStep(s.profile, true)
	return s.exec(ctx, cmd, err)
}

func (s *Session) DialogDown(ctx context.Context) error {
	cmd, err := protocol.DialogStep(s.profile, false)
	return s.exec(ctx, cmd, err)
}

// SetVerbosity sets the device's reporting level (0-2).
func (s *Session) SetVerbosity(ctx context.Context, level int) error {
	cmd, err := protocol.Verbosity(level)
	return s.exec(ctx, cmd, err)
}

// Ping round-trips a no-op command.
func (s *Session) Ping(ctx context.Context) error {
	return s.exec(ctx, protocol.Ping(), nil)
}

// Query asks the device for the current value of f and returns it. The
// answer is also applied to the state cache.
func (s *Session) Query(ctx context.Context, f models.Field) (models.Value, error) {
	cmd, err := protocol.Query(s.profile, f)
	if err != nil {
		return nil, err
	}
	msg, err := s.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !msg.IsUpdate() {
		return nil, fmt.Errorf("controller: query %s answered by %s", f, msg.Kind)
	}
	return msg.Value, nil
}

// SendRaw transmits an arbitrary command line. When reply is empty only an
// OK or ERROR answers it.
func (s *Session) SendRaw(ctx context.Context, text, reply string) (protocol.Message, error) {
	return s.Send(ctx, protocol.Raw(text, reply))
}
