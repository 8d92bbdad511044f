package protocol

import (
	"strconv"
	"strings"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// Kind classifies a parsed frame.
type Kind int

const (
	KindUnknown Kind = iota // unrecognised or malformed; never fatal
	KindAck                 // plain acknowledgement
	KindError               // device rejected the last command
	KindState               // controllable setting
	KindInfo                // read-only descriptor
	KindEcho                // '#'-prefixed echo emitted at verbosity 2
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	case KindState:
		return "state"
	case KindInfo:
		return "info"
	case KindEcho:
		return "echo"
	default:
		return "unknown"
	}
}

// Message is the typed form of one frame.
type Message struct {
	Kind  Kind
	Token string       // reply token, e.g. "VOL" or "MUTE"
	Field models.Field // State and Info only
	Value models.Value // State and Info only
	Code  int          // Error only
	Text  string       // Error description
	Raw   string
}

// IsUpdate reports whether m carries a field value for the state cache.
func (m Message) IsUpdate() bool {
	return m.Kind == KindState || m.Kind == KindInfo
}

// wire is a frame split into its grammar parts: !TOKEN[(args)]["name"].
type wire struct {
	token   string
	args    string
	hasArgs bool
	name    string
	hasName bool
}

func split(body string) (wire, bool) {
	var w wire
	i := 0
	for i < len(body) && isTokenByte(body[i]) {
		i++
	}
	if i == 0 {
		return w, false
	}
	w.token, body = body[:i], body[i:]
	if strings.HasPrefix(body, "(") {
		end := strings.IndexByte(body, ')')
		if end < 0 {
			return w, false
		}
		w.args, w.hasArgs = body[1:end], true
		body = body[end+1:]
	}
	if strings.HasPrefix(body, "\"") {
		end := strings.LastIndexByte(body, '"')
		if end == 0 {
			return w, false
		}
		w.name, w.hasName = body[1:end], true
		body = body[end+1:]
	}
	return w, body == ""
}

func isTokenByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

type decoder struct {
	token string // canonical reply token; defaults to the wire token
	field models.Field
	kind  Kind
	// decode returns false when the frame is malformed or not valid for p.
	decode func(w wire, p *hardware.Profile) (models.Value, bool)
}

var decoders = map[string]decoder{
	"POWER":      {field: models.FieldPower, kind: KindState, decode: flag},
	"POWERZONE2": {field: models.FieldZone2Power, kind: KindState, decode: flag},
	"VOL":        {field: models.FieldVolume, kind: KindState, decode: volume},
	"ZVOL":       {field: models.FieldZone2Volume, kind: KindState, decode: volume},
	"MUTEON":     {token: "MUTE", field: models.FieldMute, kind: KindState, decode: constant(true)},
	"MUTEOFF":    {token: "MUTE", field: models.FieldMute, kind: KindState, decode: constant(false)},
	"ZMUTEON":    {token: "ZMUTE", field: models.FieldZone2Mute, kind: KindState, decode: constant(true)},
	"ZMUTEOFF":   {token: "ZMUTE", field: models.FieldZone2Mute, kind: KindState, decode: constant(false)},
	"SRC":        {field: models.FieldSource, kind: KindState, decode: indexed(nil)},
	"ZSRC":       {field: models.FieldZone2Source, kind: KindState, decode: indexed(nil)},
	"RPFOC":      {field: models.FieldRoomPerfectPosition, kind: KindState, decode: indexed(nil)},
	"RPVOI":      {field: models.FieldRoomPerfectVoicing, kind: KindState, decode: indexed(nil)},
	"AUDMODE":    {field: models.FieldAudioMode, kind: KindState, decode: indexed(nil)},
	"TRIMBASS":   {field: models.FieldTrimBass, kind: KindState, decode: trim(hardware.ChannelBass)},
	"TRIMTREB":   {field: models.FieldTrimTreble, kind: KindState, decode: trim(hardware.ChannelTreble)},
	"TRIMCENTER": {field: models.FieldTrimCenter, kind: KindState, decode: trim(hardware.ChannelCenter)},
	"TRIMLFE":    {field: models.FieldTrimLFE, kind: KindState, decode: trim(hardware.ChannelLFE)},
	"TRIMSURRS":  {field: models.FieldTrimSurround, kind: KindState, decode: trim(hardware.ChannelSurround)},
	"TRIMHEIGHT": {field: models.FieldTrimHeight, kind: KindState, decode: trim(hardware.ChannelHeight)},
	"LIPSYNC":    {field: models.FieldLipSync, kind: KindState, decode: integer},
	"LOUDNESS":   {field: models.FieldLoudness, kind: KindState, decode: flag},
	"DTSDIALOG":  {field: models.FieldDialog, kind: KindState, decode: dialog},
	"SRCOFF":     {field: models.FieldSourceOffset, kind: KindState, decode: decibel},
	"MAXVOL":     {field: models.FieldMaxVolume, kind: KindState, decode: decibel},
	"DEFVOL":     {field: models.FieldDefaultVolume, kind: KindState, decode: defaultVolume},

	"AUDIN":   {field: models.FieldAudioInput, kind: KindInfo, decode: audioInput},
	"AUDTYPE": {field: models.FieldAudioFormat, kind: KindInfo, decode: quoted},
	"VIDIN":   {field: models.FieldVideoInput, kind: KindInfo, decode: indexed(hardware.VideoInputs)},
	"VIDTYPE": {field: models.FieldVideoFormat, kind: KindInfo, decode: quoted},
	"STREAMTYPE": {field: models.FieldStreamType, kind: KindInfo, decode: func(w wire, p *hardware.Profile) (models.Value, bool) {
		if !p.StreamType {
			return nil, false
		}
		return indexed(hardware.StreamTypes)(w, p)
	}},
	"DTSDIALOGAVAILABLE": {field: models.FieldDialogAvailable, kind: KindInfo, decode: func(w wire, p *hardware.Profile) (models.Value, bool) {
		if !p.DialogControl {
			return nil, false
		}
		return flag(w, p)
	}},
	"DEVICE":    {field: models.FieldDeviceName, kind: KindInfo, decode: quoted},
	"INTERFACE": {field: models.FieldInterface, kind: KindInfo, decode: quoted},
	"VERB":      {field: models.FieldVerbosity, kind: KindInfo, decode: integer},
}

// Parse classifies and decodes one frame for profile p. It never fails:
// anything it cannot decode becomes a KindUnknown message.
func Parse(text string, p *hardware.Profile) Message {
	raw := text
	text = strings.TrimSpace(text)
	msg := Message{Kind: KindUnknown, Raw: raw}
	if text == "" {
		return msg
	}
	if text[0] == '#' {
		msg.Kind = KindEcho
		if w, ok := split(text[1:]); ok {
			msg.Token = w.token
		}
		return msg
	}
	if text[0] != '!' {
		return msg
	}
	w, ok := split(text[1:])
	if !ok {
		return msg
	}

	switch w.token {
	case "OK", "PONG":
		if w.hasArgs || w.hasName {
			return msg
		}
		msg.Kind = KindAck
		msg.Token = w.token
		return msg
	case "ERROR":
		msg.Kind = KindError
		msg.Token = w.token
		if w.hasArgs {
			code, err := strconv.Atoi(strings.TrimSpace(w.args))
			if err != nil {
				return Message{Kind: KindUnknown, Raw: raw}
			}
			msg.Code = code
		}
		msg.Text = ErrorText(msg.Code)
		if w.hasName && w.name != "" {
			msg.Text = w.name
		}
		return msg
	}

	d, ok := decoders[w.token]
	if !ok {
		return msg
	}
	v, ok := d.decode(w, p)
	if !ok {
		return msg
	}
	msg.Kind = d.kind
	msg.Token = w.token
	if d.token != "" {
		msg.Token = d.token
	}
	msg.Field = d.field
	msg.Value = v
	return msg
}

func argInt(w wire) (int, bool) {
	if !w.hasArgs {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(w.args))
	return n, err == nil
}

func flag(w wire, _ *hardware.Profile) (models.Value, bool) {
	n, ok := argInt(w)
	if !ok || (n != 0 && n != 1) || w.hasName {
		return nil, false
	}
	return n == 1, true
}

func constant(v bool) func(wire, *hardware.Profile) (models.Value, bool) {
	return func(w wire, _ *hardware.Profile) (models.Value, bool) {
		if w.hasArgs || w.hasName {
			return nil, false
		}
		return v, true
	}
}

func integer(w wire, _ *hardware.Profile) (models.Value, bool) {
	n, ok := argInt(w)
	if !ok || w.hasName {
		return nil, false
	}
	return n, true
}

func decibel(w wire, _ *hardware.Profile) (models.Value, bool) {
	n, ok := argInt(w)
	if !ok || w.hasName {
		return nil, false
	}
	return FromTenths(n), true
}

func volume(w wire, p *hardware.Profile) (models.Value, bool) {
	n, ok := argInt(w)
	if !ok || w.hasName || !p.Volume.Contains(n) {
		return nil, false
	}
	return FromTenths(n), true
}

func trim(ch hardware.Channel) func(wire, *hardware.Profile) (models.Value, bool) {
	return func(w wire, p *hardware.Profile) (models.Value, bool) {
		r, ok := p.Trims[ch]
		if !ok {
			return nil, false
		}
		n, ok := argInt(w)
		if !ok || w.hasName || !r.Contains(n) {
			return nil, false
		}
		return FromTenths(n), true
	}
}

func dialog(w wire, p *hardware.Profile) (models.Value, bool) {
	if !p.DialogControl {
		return nil, false
	}
	n, ok := argInt(w)
	if !ok || w.hasName || !p.Dialog.Contains(n) {
		return nil, false
	}
	return n, true
}

func defaultVolume(w wire, p *hardware.Profile) (models.Value, bool) {
	if strings.TrimSpace(w.args) == "OFF" && !w.hasName {
		return "OFF", true
	}
	return decibel(w, p)
}

// indexed decodes !TOKEN(n)"name". When the frame has no name, names is
// consulted for a display name.
func indexed(names map[int]string) func(wire, *hardware.Profile) (models.Value, bool) {
	return func(w wire, _ *hardware.Profile) (models.Value, bool) {
		n, ok := argInt(w)
		if !ok || n < 0 {
			return nil, false
		}
		name := w.name
		if !w.hasName && names != nil {
			name = names[n]
		}
		return models.Indexed{Index: n, Name: name}, true
	}
}

func audioInput(w wire, p *hardware.Profile) (models.Value, bool) {
	n, ok := argInt(w)
	if !ok {
		return nil, false
	}
	name, known := p.AudioInputName(n)
	if !known {
		return nil, false
	}
	if w.hasName {
		name = w.name
	}
	return models.Indexed{Index: n, Name: name}, true
}

// quoted decodes !TOKEN"text" or !TOKEN(text).
func quoted(w wire, _ *hardware.Profile) (models.Value, bool) {
	switch {
	case w.hasName && !w.hasArgs:
		return w.name, true
	case w.hasArgs && !w.hasName:
		return w.args, true
	default:
		return nil, false
	}
}

// FromTenths converts a fixed-point wire value to dB.
func FromTenths(n int) float64 { return float64(n) / 10 }
