// Package models defines the device data model shared by the protocol client,
// its state cache and the HTTP bridge.
package models

import (
	"encoding/json"
	"maps"
	"slices"
)

// Field names one observable device setting or descriptor.
type Field string

const (
	FieldPower       Field = "power"
	FieldVolume      Field = "volume" // dB
	FieldMute        Field = "mute"
	FieldSource      Field = "source" // Indexed
	FieldZone2Power  Field = "zone2.power"
	FieldZone2Volume Field = "zone2.volume"
	FieldZone2Mute   Field = "zone2.mute"
	FieldZone2Source Field = "zone2.source"

	FieldRoomPerfectPosition Field = "roomperfect.position" // Indexed
	FieldRoomPerfectVoicing  Field = "roomperfect.voicing"  // Indexed
	FieldAudioMode           Field = "audio.mode"           // Indexed

	FieldTrimBass     Field = "trim.bass"
	FieldTrimTreble   Field = "trim.treble"
	FieldTrimCenter   Field = "trim.center"
	FieldTrimLFE      Field = "trim.lfe"
	FieldTrimSurround Field = "trim.surrounds"
	FieldTrimHeight   Field = "trim.height"

	FieldLipSync       Field = "lipsync" // ms
	FieldLoudness      Field = "loudness"
	FieldDialog        Field = "dialog" // level
	FieldSourceOffset  Field = "source.offset"
	FieldMaxVolume     Field = "volume.max"
	FieldDefaultVolume Field = "volume.default" // dB, or string "OFF"

	FieldAudioInput      Field = "audio.input" // Indexed
	FieldAudioFormat     Field = "audio.format"
	FieldVideoInput      Field = "video.input" // Indexed
	FieldVideoFormat     Field = "video.format"
	FieldStreamType      Field = "stream.type" // Indexed, MP-60
	FieldDialogAvailable Field = "dialog.available"
	FieldDeviceName      Field = "device.name"
	FieldInterface       Field = "device.interface"
	FieldVerbosity       Field = "verbosity"

	// FieldConnection is only used for the final teardown notification.
	FieldConnection Field = "connection"
)

// Indexed is an enumerated device value: the numeric index the device uses on
// the wire plus the display name it reported (may be empty).
type Indexed struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
}

// Value is one of bool, int, float64 (dB), string or Indexed.
// All of them are comparable with ==.
type Value any

// Snapshot is an immutable view of the device state at one revision.
// Fields never observed from the device are absent.
type Snapshot struct {
	Revision uint64
	values   map[Field]Value
}

// NewSnapshot wraps values without copying; callers hand over ownership.
func NewSnapshot(rev uint64, values map[Field]Value) Snapshot {
	return Snapshot{Revision: rev, values: values}
}

// Get returns the value of f and whether it has been observed.
func (s Snapshot) Get(f Field) (Value, bool) {
	v, ok := s.values[f]
	return v, ok
}

// Known reports whether f has been observed.
func (s Snapshot) Known(f Field) bool {
	_, ok := s.values[f]
	return ok
}

// Bool returns a boolean field.
func (s Snapshot) Bool(f Field) (bool, bool) {
	v, ok := s.values[f].(bool)
	return v, ok
}

// Float returns a dB field.
func (s Snapshot) Float(f Field) (float64, bool) {
	v, ok := s.values[f].(float64)
	return v, ok
}

// Int returns an integer field.
func (s Snapshot) Int(f Field) (int, bool) {
	v, ok := s.values[f].(int)
	return v, ok
}

// String returns a text field.
func (s Snapshot) String(f Field) (string, bool) {
	v, ok := s.values[f].(string)
	return v, ok
}

// Indexed returns an enumerated field.
func (s Snapshot) Indexed(f Field) (Indexed, bool) {
	v, ok := s.values[f].(Indexed)
	return v, ok
}

// Fields returns the observed fields in sorted order.
func (s Snapshot) Fields() []Field {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of observed fields.
func (s Snapshot) Len() int { return len(s.values) }

// Values returns a copy of the observed values.
func (s Snapshot) Values() map[Field]Value {
	return maps.Clone(s.values)
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	values := s.values
	if values == nil {
		values = map[Field]Value{}
	}
	return json.Marshal(struct {
		Revision uint64          `json:"revision"`
		Values   map[Field]Value `json:"values"`
	}{s.Revision, values})
}

// Update is delivered to subscribers for every changed field.
// On session teardown a final Update with Field == FieldConnection and a
// non-nil Err is delivered.
type Update struct {
	Field    Field    `json:"field"`
	Value    Value    `json:"value"`
	Snapshot Snapshot `json:"snapshot"`
	Err      error    `json:"-"`
}
