package protocol

import (
	"fmt"
	"math"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Command is one outbound protocol line.
type Command struct {
	Text  string // without terminator
	Reply string // status token that acknowledges it; "" accepts only Ack/Error
	// Volume marks commands subject to the slower volume spacing.
	Volume bool
}

// Bytes returns the wire encoding of c.
func (c Command) Bytes() []byte {
	return append([]byte(c.Text), Terminator)
}

func (c Command) String() string { return c.Text }

// Raw wraps arbitrary command text. reply may be empty.
func Raw(text, reply string) Command {
	return Command{Text: text, Reply: reply}
}

// ToTenths converts dB to the wire's fixed-point tenths.
func ToTenths(db float64) int {
	return int(math.Round(db * 10))
}

func checkDB(op string, db float64, r hardware.Range) (int, error) {
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return 0, models.OutOfRangeError(op, "%v is not a number", db)
	}
	// Bounds apply to the requested value, not its rounded wire form.
	lo, hi := FromTenths(r.Min), FromTenths(r.Max)
	if db < lo || db > hi {
		return 0, models.OutOfRangeError(op, "%v dB outside [%.1f, %.1f]", db, lo, hi)
	}
	return ToTenths(db), nil
}

func checkInt(op string, v int, r hardware.Range) error {
	if !r.Contains(v) {
		return models.OutOfRangeError(op, "%d outside [%d, %d]", v, r.Min, r.Max)
	}
	return nil
}

func onOff(on bool, onText, offText, reply string) Command {
	if on {
		return Command{Text: onText, Reply: reply}
	}
	return Command{Text: offText, Reply: reply}
}

// Power switches the main zone.
func Power(on bool) Command {
	return onOff(on, "!POWERONMAIN", "!POWEROFFMAIN", "POWER")
}

// Zone2Power switches zone 2.
func Zone2Power(on bool) Command {
	return onOff(on, "!POWERONZONE2", "!POWEROFFZONE2", "POWERZONE2")
}

// Volume sets the main volume in dB.
func Volume(p *hardware.Profile, db float64) (Command, error) {
	n, err := checkDB("setVolume", db, p.Volume)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!VOL(%d)", n), Reply: "VOL", Volume: true}, nil
}

// Zone2Volume sets the zone 2 volume in dB.
func Zone2Volume(p *hardware.Profile, db float64) (Command, error) {
	n, err := checkDB("setZone2Volume", db, p.Volume)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!ZVOL(%d)", n), Reply: "ZVOL", Volume: true}, nil
}

var stepRange = hardware.Range{Min: 1, Max: 999}

func volumeStep(op, token string, up bool, amount float64) (Command, error) {
	sign := "-"
	if up {
		sign = "+"
	}
	if amount == 0 {
		return Command{Text: "!" + token + sign, Reply: token, Volume: true}, nil
	}
	n, err := checkDB(op, amount, stepRange)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!%s%s(%d)", token, sign, n), Reply: token, Volume: true}, nil
}

// VolumeStep nudges the main volume; amount 0 uses the device's step.
func VolumeStep(up bool, amount float64) (Command, error) {
	return volumeStep("volumeStep", "VOL", up, amount)
}

// Zone2VolumeStep nudges the zone 2 volume; amount 0 uses the device's step.
func Zone2VolumeStep(up bool, amount float64) (Command, error) {
	return volumeStep("zone2VolumeStep", "ZVOL", up, amount)
}

// MaxVolume sets the volume ceiling stored in the device.
func MaxVolume(p *hardware.Profile, db float64) (Command, error) {
	n, err := checkDB("setMaxVolume", db, p.Volume)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!MAXVOL(%d)", n), Reply: "MAXVOL"}, nil
}

// DefaultVolume sets the power-on volume; nil turns the feature off.
func DefaultVolume(p *hardware.Profile, db *float64) (Command, error) {
	if db == nil {
		return Command{Text: "!DEFVOL(OFF)", Reply: "DEFVOL"}, nil
	}
	n, err := checkDB("setDefaultVolume", *db, p.Volume)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!DEFVOL(%d)", n), Reply: "DEFVOL"}, nil
}

// Mute sets the main mute.
func Mute(on bool) Command { return onOff(on, "!MUTEON", "!MUTEOFF", "MUTE") }

// MuteToggle toggles the main mute.
func MuteToggle() Command { return Command{Text: "!MUTE", Reply: "MUTE"} }

// Zone2Mute sets the zone 2 mute.
func Zone2Mute(on bool) Command { return onOff(on, "!ZMUTEON", "!ZMUTEOFF", "ZMUTE") }

// Zone2MuteToggle toggles the zone 2 mute.
func Zone2MuteToggle() Command { return Command{Text: "!ZMUTE", Reply: "ZMUTE"} }

// Source selects the main source by index.
func Source(p *hardware.Profile, idx int) (Command, error) {
	if err := checkInt("setSource", idx, hardware.Range{Min: 0, Max: p.MaxSource}); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!SRC(%d)", idx), Reply: "SRC"}, nil
}

// Zone2Source selects the zone 2 source by index.
func Zone2Source(p *hardware.Profile, idx int) (Command, error) {
	if err := checkInt("setZone2Source", idx, hardware.Range{Min: 0, Max: p.MaxSource}); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!ZSRC(%d)", idx), Reply: "ZSRC"}, nil
}

// SourceStep selects the next or previous main source.
func SourceStep(next bool) Command {
	if next {
		return Command{Text: "!SRC+", Reply: "SRC"}
	}
	return Command{Text: "!SRC-", Reply: "SRC"}
}

// SourceOffset sets the volume offset of the current source in dB.
func SourceOffset(p *hardware.Profile, db float64) (Command, error) {
	n, err := checkDB("setSourceOffset", db, p.SourceOffset)
	if err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!SRCOFF(%d)", n), Reply: "SRCOFF"}, nil
}

var roomPerfectRange = hardware.Range{Min: hardware.RoomPerfectBypass, Max: hardware.RoomPerfectGlobal}

// RoomPerfectPosition selects bypass (0), focus 1-8 or global (9).
func RoomPerfectPosition(pos int) (Command, error) {
	if err := checkInt("setRoomPerfectPosition", pos, roomPerfectRange); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!RPFOC(%d)", pos), Reply: "RPFOC"}, nil
}

// RoomPerfectVoicing selects a voicing by device index.
func RoomPerfectVoicing(idx int) (Command, error) {
	if idx < 0 {
		return Command{}, models.OutOfRangeError("setRoomPerfectVoicing", "%d is negative", idx)
	}
	return Command{Text: fmt.Sprintf("!RPVOI(%d)", idx), Reply: "RPVOI"}, nil
}

// AudioMode selects a processing mode by device index.
func AudioMode(idx int) (Command, error) {
	if idx < 0 {
		return Command{}, models.OutOfRangeError("setAudioMode", "%d is negative", idx)
	}
	return Command{Text: fmt.Sprintf("!AUDMODE(%d)", idx), Reply: "AUDMODE"}, nil
}

// Trim sets a channel trim in dB.
func Trim(p *hardware.Profile, ch hardware.Channel, db float64) (Command, error) {
	op := "setChannelTrim(" + string(ch) + ")"
	r, ok := p.Trims[ch]
	if !ok {
		return Command{}, models.UnsupportedError(op, p.Name)
	}
	n, err := checkDB(op, db, r)
	if err != nil {
		return Command{}, err
	}
	token := "TRIM" + string(ch)
	return Command{Text: fmt.Sprintf("!%s(%d)", token, n), Reply: token}, nil
}

// LipSync sets the lip-sync delay in milliseconds.
func LipSync(p *hardware.Profile, ms int) (Command, error) {
	if err := checkInt("setLipSyncDelay", ms, p.LipSync); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!LIPSYNC(%d)", ms), Reply: "LIPSYNC"}, nil
}

// Loudness switches loudness compensation.
func Loudness(on bool) Command {
	if on {
		return Command{Text: "!LOUDNESS(1)", Reply: "LOUDNESS"}
	}
	return Command{Text: "!LOUDNESS(0)", Reply: "LOUDNESS"}
}

// Dialog sets the DTS Dialog Control level.
func Dialog(p *hardware.Profile, level int) (Command, error) {
	if !p.DialogControl {
		return Command{}, models.UnsupportedError("setDialogControl", p.Name)
	}
	if err := checkInt("setDialogControl", level, p.Dialog); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!DTSDIALOG(%d)", level), Reply: "DTSDIALOG"}, nil
}

// DialogStep raises or lowers the DTS Dialog Control level by one.
func DialogStep(p *hardware.Profile, up bool) (Command, error) {
	if !p.DialogControl {
		return Command{}, models.UnsupportedError("dialogStep", p.Name)
	}
	if up {
		return Command{Text: "!DTSDIALOGUP", Reply: "DTSDIALOG"}, nil
	}
	return Command{Text: "!DTSDIALOGDN", Reply: "DTSDIALOG"}, nil
}

// Verbosity sets how chatty the device is: 0 replies only, 1 adds
// unsolicited status updates, 2 also echoes commands with a '#' prefix.
func Verbosity(level int) (Command, error) {
	if err := checkInt("setVerbosity", level, hardware.Range{Min: 0, Max: 2}); err != nil {
		return Command{}, err
	}
	return Command{Text: fmt.Sprintf("!VERB(%d)", level), Reply: "VERB"}, nil
}

// Ping checks the device is responsive.
func Ping() Command { return Command{Text: "!PING?", Reply: "PONG"} }

type query struct {
	token string
	need  func(p *hardware.Profile) bool
}

var queries = map[models.Field]query{
	models.FieldPower:               {token: "POWER"},
	models.FieldVolume:              {token: "VOL"},
	models.FieldMute:                {token: "MUTE"},
	models.FieldSource:              {token: "SRC"},
	models.FieldZone2Power:          {token: "POWERZONE2"},
	models.FieldZone2Volume:         {token: "ZVOL"},
	models.FieldZone2Mute:           {token: "ZMUTE"},
	models.FieldZone2Source:         {token: "ZSRC"},
	models.FieldRoomPerfectPosition: {token: "RPFOC"},
	models.FieldRoomPerfectVoicing:  {token: "RPVOI"},
	models.FieldAudioMode:           {token: "AUDMODE"},
	models.FieldTrimBass:            {token: "TRIMBASS", need: hasChannel(hardware.ChannelBass)},
	models.FieldTrimTreble:          {token: "TRIMTREB", need: hasChannel(hardware.ChannelTreble)},
	models.FieldTrimCenter:          {token: "TRIMCENTER", need: hasChannel(hardware.ChannelCenter)},
	models.FieldTrimLFE:             {token: "TRIMLFE", need: hasChannel(hardware.ChannelLFE)},
	models.FieldTrimSurround:        {token: "TRIMSURRS", need: hasChannel(hardware.ChannelSurround)},
	models.FieldTrimHeight:          {token: "TRIMHEIGHT", need: hasChannel(hardware.ChannelHeight)},
	models.FieldLipSync:             {token: "LIPSYNC"},
	models.FieldLoudness:            {token: "LOUDNESS"},
	models.FieldDialog:              {token: "DTSDIALOG", need: func(p *hardware.Profile) bool { return p.DialogControl }},
	models.FieldDialogAvailable:     {token: "DTSDIALOGAVAILABLE", need: func(p *hardware.Profile) bool { return p.DialogControl }},
	models.FieldSourceOffset:        {token: "SRCOFF"},
	models.FieldMaxVolume:           {token: "MAXVOL"},
	models.FieldDefaultVolume:       {token: "DEFVOL"},
	models.FieldAudioInput:          {token: "AUDIN"},
	models.FieldAudioFormat:         {token: "AUDTYPE"},
	models.FieldVideoInput:          {token: "VIDIN"},
	models.FieldVideoFormat:         {token: "VIDTYPE"},
	models.FieldStreamType:          {token: "STREAMTYPE", need: func(p *hardware.Profile) bool { return p.StreamType }},
	models.FieldDeviceName:          {token: "DEVICE"},
	models.FieldInterface:           {token: "INTERFACE"},
	models.FieldVerbosity:           {token: "VERB"},
}

func hasChannel(ch hardware.Channel) func(*hardware.Profile) bool {
	return func(p *hardware.Profile) bool { return p.HasChannel(ch) }
}

// Query builds the status request for field f. The device answers with the
// same status line it emits as an unsolicited update.
func Query(p *hardware.Profile, f models.Field) (Command, error) {
	q, ok := queries[f]
	if !ok {
		return Command{}, models.UnsupportedError("query "+string(f), p.Name)
	}
	if q.need != nil && !q.need(p) {
		return Command{}, models.UnsupportedError("query "+string(f), p.Name)
	}
	return Command{Text: "!" + q.token + "?", Reply: q.token}, nil
}

// MainFields are refreshed while the main zone is powered.
func MainFields(p *hardware.Profile) []models.Field {
	fields := []models.Field{
		models.FieldVolume, models.FieldMute, models.FieldSource,
		models.FieldRoomPerfectPosition, models.FieldRoomPerfectVoicing, models.FieldAudioMode,
		models.FieldLipSync, models.FieldLoudness, models.FieldSourceOffset,
		models.FieldAudioInput, models.FieldAudioFormat, models.FieldVideoInput, models.FieldVideoFormat,
	}
	for _, ch := range p.Channels() {
		fields = append(fields, TrimField(ch))
	}
	if p.DialogControl {
		fields = append(fields, models.FieldDialogAvailable, models.FieldDialog)
	}
	if p.StreamType {
		fields = append(fields, models.FieldStreamType)
	}
	return fields
}

// Zone2Fields are refreshed while zone 2 is powered.
func Zone2Fields() []models.Field {
	return []models.Field{models.FieldZone2Volume, models.FieldZone2Mute, models.FieldZone2Source}
}

// TrimField maps a trim channel to its state field.
func TrimField(ch hardware.Channel) models.Field {
	switch ch {
	case hardware.ChannelBass:
		return models.FieldTrimBass
	case hardware.ChannelTreble:
		return models.FieldTrimTreble
	case hardware.ChannelCenter:
		return models.FieldTrimCenter
	case hardware.ChannelLFE:
		return models.FieldTrimLFE
	case hardware.ChannelSurround:
		return models.FieldTrimSurround
	case hardware.ChannelHeight:
		return models.FieldTrimHeight
	default:
		return models.Field("trim." + string(ch))
	}
}
