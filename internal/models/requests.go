package models

// MainUpdate is the body of PATCH /api/main. Nil fields are left alone.
// Power is applied first; switching off skips everything else.
type MainUpdate struct {
	Power            *bool    `json:"power,omitempty"`
	Volume           *float64 `json:"volume,omitempty"`       // dB
	VolumeDelta      *float64 `json:"volume_delta,omitempty"` // dB, signed
	Mute             *bool    `json:"mute,omitempty"`
	Source           *int     `json:"source,omitempty"`
	SourceOffset     *float64 `json:"source_offset,omitempty"`
	MaxVolume        *float64 `json:"max_volume,omitempty"`
	DefaultVolume    *float64 `json:"default_volume,omitempty"`
	DefaultVolumeOff bool     `json:"default_volume_off,omitempty"`
}

// Zone2Update is the body of PATCH /api/zone2.
type Zone2Update struct {
	Power       *bool    `json:"power,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	VolumeDelta *float64 `json:"volume_delta,omitempty"`
	Mute        *bool    `json:"mute,omitempty"`
	Source      *int     `json:"source,omitempty"`
}

// AudioUpdate is the body of PATCH /api/audio.
type AudioUpdate struct {
	RoomPerfectPosition *int  `json:"roomperfect_position,omitempty"`
	RoomPerfectVoicing  *int  `json:"roomperfect_voicing,omitempty"`
	AudioMode           *int  `json:"audio_mode,omitempty"`
	LipSync             *int  `json:"lipsync,omitempty"` // ms
	Loudness            *bool `json:"loudness,omitempty"`
	Dialog              *int  `json:"dialog,omitempty"`
}

// TrimUpdate is the body of PATCH /api/trims, keyed by channel name as it
// appears in the state ("bass", "center", "surrounds", ...). Values in dB.
type TrimUpdate map[string]float64

// RawCommand is the body of POST /api/raw.
type RawCommand struct {
	Command string `json:"command"`
	Reply   string `json:"reply,omitempty"` // status token that answers the command
}

// RawReply is the response to POST /api/raw.
type RawReply struct {
	Kind  string `json:"kind"`
	Token string `json:"token,omitempty"`
	Field Field  `json:"field,omitempty"`
	Value Value  `json:"value,omitempty"`
	Code  int    `json:"code,omitempty"`
	Raw   string `json:"raw"`
}
