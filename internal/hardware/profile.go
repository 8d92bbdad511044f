package hardware

import (
	"fmt"
	"slices"
	"time"
)

// ModelID identifies a supported processor model.
type ModelID string

const (
	ModelMP50 ModelID = "mp50"
	ModelMP60 ModelID = "mp60"
)

// Channel is a channel-trim target.
type Channel string

const (
	ChannelBass     Channel = "BASS"
	ChannelTreble   Channel = "TREB"
	ChannelCenter   Channel = "CENTER"
	ChannelLFE      Channel = "LFE"
	ChannelSurround Channel = "SURRS"
	ChannelHeight   Channel = "HEIGHT"
)

// Range is an inclusive bound in wire units (tenths of a dB for dB values).
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies within r.
func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Profile is the static description of one hardware model. Profiles are
// selected once at construction and are read-only for the life of a session.
type Profile struct {
	ID          ModelID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`

	Volume       Range             `json:"volume"`        // tenths of a dB
	SourceOffset Range             `json:"source_offset"` // tenths of a dB
	Trims        map[Channel]Range `json:"trims"`         // tenths of a dB
	LipSync      Range             `json:"lipsync"`       // ms
	MaxSource    int               `json:"max_source"`    // highest selectable source index

	DialogControl bool  `json:"dialog_control"` // DTS Dialog Control
	Dialog        Range `json:"dialog"`         // dialog level steps
	StreamType    bool  `json:"stream_type"`    // network player reports !STREAMTYPE
	AES16         bool  `json:"aes16"`          // optional 16-channel AES module inputs

	AudioInputs map[int]string `json:"audio_inputs"`

	MinCommandInterval time.Duration `json:"-"`
	MinVolumeInterval  time.Duration `json:"-"`

	BaudRate int `json:"baud_rate"`
	Port     int `json:"port"`
}

// HasChannel reports whether ch is a trim target on this model.
func (p *Profile) HasChannel(ch Channel) bool {
	_, ok := p.Trims[ch]
	return ok
}

// Channels returns the trim targets in wire order.
func (p *Profile) Channels() []Channel {
	var out []Channel
	for _, ch := range channelOrder {
		if p.HasChannel(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// AudioInputName returns the display name for an audio input index.
func (p *Profile) AudioInputName(idx int) (string, bool) {
	name, ok := p.AudioInputs[idx]
	return name, ok
}

var channelOrder = []Channel{
	ChannelBass, ChannelTreble, ChannelCenter, ChannelLFE, ChannelSurround, ChannelHeight,
}

var standardTrims = map[Channel]Range{
	ChannelBass:     {-120, 120},
	ChannelTreble:   {-120, 120},
	ChannelCenter:   {-100, 100},
	ChannelLFE:      {-100, 100},
	ChannelSurround: {-100, 100},
	ChannelHeight:   {-100, 100},
}

// audioInputs common to both models.
var audioInputs = map[int]string{
	0:  "None",
	1:  "HDMI",
	3:  "SPDIF 1 (Optical)",
	4:  "SPDIF 2 (Optical)",
	5:  "SPDIF 3 (Optical)",
	6:  "SPDIF 4 (Optical)",
	7:  "SPDIF 5 (AES/EBU)",
	8:  "SPDIF 6 (Coaxial)",
	9:  "SPDIF 7 (Coaxial)",
	10: "SPDIF 8 (Coaxial)",
	11: "Internal Player",
	12: "USB",
	24: "Audio Return Channel",
}

// aes16Inputs are only present with the MP-60's optional module.
var aes16Inputs = map[int]string{
	20: "16-Channel (AES)",
	21: "16-Channel 2.0 (AES)",
	22: "16-Channel 5.1 (AES)",
	23: "16-Channel 7.1 (AES)",
}

// VideoInputs maps !VIDIN indices to names on both models.
var VideoInputs = map[int]string{
	0: "None",
	1: "HDMI 1",
	2: "HDMI 2",
	3: "HDMI 3",
	4: "HDMI 4",
	5: "HDMI 5",
	6: "HDMI 6",
	7: "HDMI 7",
	8: "HDMI 8",
	9: "Internal",
}

// StreamTypes maps !STREAMTYPE indices to names (MP-60 network player).
var StreamTypes = map[int]string{
	0: "None",
	1: "vTuner",
	2: "Spotify",
	3: "AirPlay",
	4: "UPnP",
	5: "Storage",
	6: "Roon Ready",
}

// RoomPerfect focus positions: 0 bypass, 1-8 focus, 9 global.
const (
	RoomPerfectBypass = 0
	RoomPerfectGlobal = 9
)

var profiles = map[ModelID]*Profile{
	ModelMP50: {
		ID:                 ModelMP50,
		Name:               "MP-50",
		Description:        "Lyngdorf MP-50 Surround Sound Processor",
		Volume:             Range{-999, 200},
		SourceOffset:       Range{-100, 100},
		Trims:              standardTrims,
		LipSync:            Range{0, 500},
		MaxSource:          31,
		AudioInputs:        audioInputs,
		MinCommandInterval: 50 * time.Millisecond,
		MinVolumeInterval:  100 * time.Millisecond,
		BaudRate:           DefaultBaudRate,
		Port:               DefaultPort,
	},
	ModelMP60: {
		ID:                 ModelMP60,
		Name:               "MP-60",
		Description:        "Lyngdorf MP-60 Surround Sound Processor",
		Volume:             Range{-999, 240},
		SourceOffset:       Range{-100, 100},
		Trims:              standardTrims,
		LipSync:            Range{0, 500},
		MaxSource:          31,
		DialogControl:      true,
		Dialog:             Range{0, 6},
		StreamType:         true,
		AES16:              true,
		AudioInputs:        mergeInputs(audioInputs, aes16Inputs),
		MinCommandInterval: 50 * time.Millisecond,
		MinVolumeInterval:  100 * time.Millisecond,
		BaudRate:           DefaultBaudRate,
		Port:               DefaultPort,
	},
}

func mergeInputs(maps ...map[int]string) map[int]string {
	out := make(map[int]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// LookupProfile returns the profile for id.
func LookupProfile(id ModelID) (*Profile, error) {
	p, ok := profiles[id]
	if !ok {
		return nil, fmt.Errorf("hardware: unsupported model %q (supported: %v)", id, SupportedModels())
	}
	return p, nil
}

// SupportedModels returns the known model ids in sorted order.
func SupportedModels() []ModelID {
	ids := make([]ModelID, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
