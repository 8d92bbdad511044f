package hardware

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Simulator is a stateful stand-in for a processor. Its Respond method plugs
// into a Mock so the daemon (-mock) and tests can run without hardware:
//
//	sim := hardware.NewSimulator(profile)
//	conn := hardware.NewMockWithResponder(sim.Respond)
//
// Set and query commands are answered with the status line the real device
// emits; unknown commands get !ERROR(1), out-of-range values !ERROR(3) and
// zone commands while that zone is in standby !ERROR(4).
type Simulator struct {
	mu      sync.Mutex
	profile *Profile

	power, zone2Power  bool
	mute, zone2Mute    bool
	loudness           bool
	vol, zvol          int // tenths of a dB
	srcOff, maxVol     int
	defVol             *int
	src, zsrc          int
	rpfoc, rpvoi, mode int
	lipsync, dialog    int
	verb               int
	trims              map[Channel]int
	sources            map[int]string
	voicings           map[int]string
	modes              map[int]string
	name, iface        string
	audioIn, videoIn   int
	audioFmt, videoFmt string
}

// NewSimulator returns a simulator for p, powered on with the main zone at
// -30.0 dB and zone 2 in standby.
func NewSimulator(p *Profile) *Simulator {
	s := &Simulator{
		profile:   p,
		power:     true,
		vol:       -300,
		zvol:      -400,
		maxVol:    p.Volume.Max,
		src:       1,
		rpfoc:     RoomPerfectGlobal,
		verb:      1,
		trims:     make(map[Channel]int),
		name:      p.Name,
		iface:     "RS232",
		audioIn:   1,
		videoIn:   1,
		audioFmt:  "Dolby Atmos",
		videoFmt:  "2160p60",
		sources: map[int]string{
			0: "None", 1: "TV", 2: "Blu-ray", 3: "Streamer", 4: "Turntable",
		},
		voicings: map[int]string{0: "Neutral", 1: "Music", 2: "Relaxed", 3: "Soft", 4: "Open"},
		modes:    map[int]string{0: "None", 1: "Auto", 2: "Dolby Upmix", 3: "DTS Neural:X", 4: "Lyngdorf"},
	}
	for _, ch := range p.Channels() {
		s.trims[ch] = 0
	}
	return s
}

// SetName sets the device name reported by !DEVICE?.
func (s *Simulator) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// SelectSource changes the main source as if from the front panel and
// returns the status line the device would push.
func (s *Simulator) SelectSource(idx int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = idx
	return s.srcLine("SRC", s.src)
}

// Respond implements Responder.
func (s *Simulator) Respond(cmd string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.HasPrefix(cmd, "!") {
		return []string{"!ERROR(1)"}
	}
	body := cmd[1:]
	i := 0
	for i < len(body) && (body[i] >= 'A' && body[i] <= 'Z' || body[i] >= '0' && body[i] <= '9') {
		i++
	}
	token, rest := body[:i], body[i:]
	lines, code := s.handle(token, rest)
	if code != 0 {
		return []string{fmt.Sprintf("!ERROR(%d)", code)}
	}
	return lines
}

// simArg is the parsed suffix of a command.
type simArg struct {
	query bool
	bare  bool
	step  int // +1 or -1 for relative commands
	n     int
	hasN  bool
}

func parseSimArg(rest string) (simArg, bool) {
	var a simArg
	switch {
	case rest == "":
		a.bare = true
		return a, true
	case rest == "?":
		a.query = true
		return a, true
	case strings.HasPrefix(rest, "+"), strings.HasPrefix(rest, "-"):
		a.step = 1
		if rest[0] == '-' {
			a.step = -1
		}
		rest = rest[1:]
		if rest == "" {
			return a, true
		}
	}
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return a, false
	}
	inner := rest[1 : len(rest)-1]
	n, err := strconv.Atoi(inner)
	if err != nil {
		return a, false
	}
	a.n, a.hasN = n, true
	return a, true
}

const (
	simUnknown    = 1
	simBadParam   = 2
	simOutOfRange = 3
	simNotNow     = 4
)

func (s *Simulator) handle(token, rest string) ([]string, int) {
	switch token {
	case "POWERONMAIN", "POWEROFFMAIN":
		if rest != "" {
			return nil, simBadParam
		}
		s.power = token == "POWERONMAIN"
		return s.one("!POWER(%d)", b2i(s.power)), 0
	case "POWERONZONE2", "POWEROFFZONE2":
		if rest != "" {
			return nil, simBadParam
		}
		s.zone2Power = token == "POWERONZONE2"
		return s.one("!POWERZONE2(%d)", b2i(s.zone2Power)), 0
	case "MUTEON", "MUTEOFF":
		if !s.power {
			return nil, simNotNow
		}
		s.mute = token == "MUTEON"
		return []string{muteLine("MUTE", s.mute)}, 0
	case "ZMUTEON", "ZMUTEOFF":
		if !s.zone2Power {
			return nil, simNotNow
		}
		s.zone2Mute = token == "ZMUTEON"
		return []string{muteLine("ZMUTE", s.zone2Mute)}, 0
	case "DTSDIALOGUP", "DTSDIALOGDN":
		if !s.profile.DialogControl {
			return nil, simUnknown
		}
		if token == "DTSDIALOGUP" {
			s.dialog = min(s.dialog+1, s.profile.Dialog.Max)
		} else {
			s.dialog = max(s.dialog-1, s.profile.Dialog.Min)
		}
		return s.one("!DTSDIALOG(%d)", s.dialog), 0
	case "DEFVOL":
		if !s.power {
			return nil, simNotNow
		}
		return s.defaultVolume(rest)
	}

	a, ok := parseSimArg(rest)
	if !ok {
		return nil, simBadParam
	}

	switch token {
	case "PING":
		if !a.query {
			return nil, simBadParam
		}
		return []string{"!PONG"}, 0
	case "POWER":
		if !a.query {
			return nil, simBadParam
		}
		return s.one("!POWER(%d)", b2i(s.power)), 0
	case "POWERZONE2":
		if !a.query {
			return nil, simBadParam
		}
		return s.one("!POWERZONE2(%d)", b2i(s.zone2Power)), 0
	case "DEVICE":
		return []string{fmt.Sprintf("!DEVICE(%s)", s.name)}, 0
	case "INTERFACE":
		return []string{fmt.Sprintf("!INTERFACE(%s)", s.iface)}, 0
	case "VERB":
		if a.hasN {
			if a.n < 0 || a.n > 2 {
				return nil, simOutOfRange
			}
			s.verb = a.n
		}
		return s.one("!VERB(%d)", s.verb), 0
	}

	// Zone 2 block.
	switch token {
	case "ZVOL", "ZMUTE", "ZSRC":
		if !s.zone2Power {
			return nil, simNotNow
		}
		switch token {
		case "ZVOL":
			return s.level("ZVOL", &s.zvol, s.profile.Volume, a)
		case "ZMUTE":
			if a.bare {
				s.zone2Mute = !s.zone2Mute
			}
			return []string{muteLine("ZMUTE", s.zone2Mute)}, 0
		case "ZSRC":
			if a.hasN {
				if a.n < 0 || a.n > s.profile.MaxSource {
					return nil, simOutOfRange
				}
				s.zsrc = a.n
			}
			return []string{s.srcLine("ZSRC", s.zsrc)}, 0
		}
	}

	// Everything else needs the main zone on.
	if !s.power {
		return nil, simNotNow
	}
	switch token {
	case "VOL":
		return s.level("VOL", &s.vol, Range{s.profile.Volume.Min, min(s.maxVol, s.profile.Volume.Max)}, a)
	case "MUTE":
		if a.bare {
			s.mute = !s.mute
		}
		return []string{muteLine("MUTE", s.mute)}, 0
	case "SRC":
		switch {
		case a.step != 0:
			s.src = (s.src + a.step + len(s.sources)) % len(s.sources)
		case a.hasN:
			if a.n < 0 || a.n > s.profile.MaxSource {
				return nil, simOutOfRange
			}
			s.src = a.n
		}
		return []string{s.srcLine("SRC", s.src)}, 0
	case "SRCOFF":
		return s.setInt("!SRCOFF(%d)", &s.srcOff, s.profile.SourceOffset, a)
	case "MAXVOL":
		return s.setInt("!MAXVOL(%d)", &s.maxVol, s.profile.Volume, a)
	case "RPFOC":
		if a.hasN {
			if a.n < RoomPerfectBypass || a.n > RoomPerfectGlobal {
				return nil, simOutOfRange
			}
			s.rpfoc = a.n
		}
		return []string{fmt.Sprintf("!RPFOC(%d)%q", s.rpfoc, focusName(s.rpfoc))}, 0
	case "RPVOI":
		return s.pick("RPVOI", &s.rpvoi, s.voicings, a)
	case "AUDMODE":
		return s.pick("AUDMODE", &s.mode, s.modes, a)
	case "LIPSYNC":
		return s.setInt("!LIPSYNC(%d)", &s.lipsync, s.profile.LipSync, a)
	case "LOUDNESS":
		if a.hasN {
			if a.n != 0 && a.n != 1 {
				return nil, simOutOfRange
			}
			s.loudness = a.n == 1
		}
		return s.one("!LOUDNESS(%d)", b2i(s.loudness)), 0
	case "DTSDIALOG":
		if !s.profile.DialogControl {
			return nil, simUnknown
		}
		return s.setInt("!DTSDIALOG(%d)", &s.dialog, s.profile.Dialog, a)
	case "DTSDIALOGAVAILABLE":
		if !s.profile.DialogControl {
			return nil, simUnknown
		}
		return s.one("!DTSDIALOGAVAILABLE(%d)", 1), 0
	case "AUDIN":
		return []string{fmt.Sprintf("!AUDIN(%d)", s.audioIn)}, 0
	case "AUDTYPE":
		return []string{fmt.Sprintf("!AUDTYPE(%s)", s.audioFmt)}, 0
	case "VIDIN":
		return s.one("!VIDIN(%d)", s.videoIn), 0
	case "VIDTYPE":
		return []string{fmt.Sprintf("!VIDTYPE(%s)", s.videoFmt)}, 0
	case "STREAMTYPE":
		if !s.profile.StreamType {
			return nil, simUnknown
		}
		return s.one("!STREAMTYPE(%d)", 0), 0
	}

	if ch, ok := strings.CutPrefix(token, "TRIM"); ok {
		c := Channel(ch)
		r, known := s.profile.Trims[c]
		if !known {
			return nil, simUnknown
		}
		v := s.trims[c]
		lines, code := s.setInt("!"+token+"(%d)", &v, r, a)
		s.trims[c] = v
		return lines, code
	}
	return nil, simUnknown
}

func (s *Simulator) one(format string, n int) []string {
	return []string{fmt.Sprintf(format, n)}
}

// level handles absolute and relative volume commands. Steps default to
// 0.5 dB and clamp at the bounds like the front-panel knob.
func (s *Simulator) level(token string, v *int, r Range, a simArg) ([]string, int) {
	switch {
	case a.step != 0:
		amount := 5
		if a.hasN {
			amount = a.n
		}
		*v = min(max(*v+a.step*amount, r.Min), r.Max)
	case a.hasN:
		if !r.Contains(a.n) {
			return nil, simOutOfRange
		}
		*v = a.n
	case !a.query:
		return nil, simBadParam
	}
	return []string{fmt.Sprintf("!%s(%d)", token, *v)}, 0
}

func (s *Simulator) setInt(format string, v *int, r Range, a simArg) ([]string, int) {
	switch {
	case a.hasN && a.step == 0:
		if !r.Contains(a.n) {
			return nil, simOutOfRange
		}
		*v = a.n
	case !a.query:
		return nil, simBadParam
	}
	return s.one(format, *v), 0
}

func (s *Simulator) pick(token string, v *int, names map[int]string, a simArg) ([]string, int) {
	switch {
	case a.hasN && a.step == 0:
		if _, ok := names[a.n]; !ok {
			return nil, simOutOfRange
		}
		*v = a.n
	case !a.query:
		return nil, simBadParam
	}
	return []string{fmt.Sprintf("!%s(%d)%q", token, *v, names[*v])}, 0
}

func (s *Simulator) defaultVolume(rest string) ([]string, int) {
	switch rest {
	case "?":
	case "(OFF)":
		s.defVol = nil
	default:
		a, ok := parseSimArg(rest)
		if !ok || !a.hasN || a.step != 0 {
			return nil, simBadParam
		}
		if !s.profile.Volume.Contains(a.n) {
			return nil, simOutOfRange
		}
		n := a.n
		s.defVol = &n
	}
	if s.defVol == nil {
		return []string{"!DEFVOL(OFF)"}, 0
	}
	return s.one("!DEFVOL(%d)", *s.defVol), 0
}

func (s *Simulator) srcLine(token string, idx int) string {
	return fmt.Sprintf("!%s(%d)%q", token, idx, s.sources[idx])
}

func focusName(pos int) string {
	switch pos {
	case RoomPerfectBypass:
		return "Bypass"
	case RoomPerfectGlobal:
		return "Global"
	default:
		return fmt.Sprintf("Focus %d", pos)
	}
}

func muteLine(token string, on bool) string {
	if on {
		return "!" + token + "ON"
	}
	return "!" + token + "OFF"
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
