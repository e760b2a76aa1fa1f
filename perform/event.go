package perform

// MIDI channel-voice status nibbles
const (
	StatusNoteOff         byte = 0x80
	StatusNoteOn          byte = 0x90
	StatusAftertouch      byte = 0xA0
	StatusControlChange   byte = 0xB0
	StatusProgramChange   byte = 0xC0
	StatusChannelPressure byte = 0xD0
	StatusPitchWheel      byte = 0xE0
	StatusSysex           byte = 0xF0
	StatusSysexEnd        byte = 0xF7
	StatusMeta            byte = 0xFF
)

// Meta event types
const (
	MetaSequenceNumber byte = 0x00
	MetaText           byte = 0x01
	MetaCopyright      byte = 0x02
	MetaTrackName      byte = 0x03
	MetaInstrumentName byte = 0x04
	MetaLyric          byte = 0x05
	MetaMarker         byte = 0x06
	MetaCuePoint       byte = 0x07
	MetaMidiChannel    byte = 0x20
	MetaMidiPort       byte = 0x21
	MetaEndOfTrack     byte = 0x2F
	MetaSetTempo       byte = 0x51
	MetaSmpteOffset    byte = 0x54
	MetaTimeSignature  byte = 0x58
	MetaKeySignature   byte = 0x59
	MetaSeqSpec        byte = 0x7F
)

// Event is one decoded (or encodable) MIDI event. Channel-voice messages use
// D0/D1; meta and sysex events carry their payload in Payload, with Meta
// holding the meta-type byte when Status is StatusMeta. Tick is absolute
// pulses from the start of the sequence; the delta form only exists on the
// wire.
type Event struct {
	Tick    uint32
	Status  byte // full status byte, channel nibble included
	Meta    byte // meta type, valid only when Status == StatusMeta
	D0, D1  byte
	Payload []byte
}

// IsChannel returns true for channel-voice messages.
func (e *Event) IsChannel() bool {
	return e.Status >= 0x80 && e.Status < 0xF0
}

// Channel returns the channel nibble of a channel-voice message.
func (e *Event) Channel() int {
	return int(e.Status & 0x0F)
}

// Kind returns the status nibble for channel messages, or the full status
// byte for meta/sysex.
func (e *Event) Kind() byte {
	if e.IsChannel() {
		return e.Status & 0xF0
	}
	return e.Status
}

// IsNoteOn reports a Note On with non-zero velocity.
func (e *Event) IsNoteOn() bool {
	return e.Kind() == StatusNoteOn && e.D1 > 0
}

// IsNoteOff reports a Note Off, or the Note-On-velocity-0 equivalent.
func (e *Event) IsNoteOff() bool {
	return e.Kind() == StatusNoteOff || (e.Kind() == StatusNoteOn && e.D1 == 0)
}

// IsMeta reports a meta event of the given type.
func (e *Event) IsMeta(metaType byte) bool {
	return e.Status == StatusMeta && e.Meta == metaType
}

// DataSize returns the number of data bytes a channel-voice status consumes.
func DataSize(status byte) int {
	switch status & 0xF0 {
	case StatusProgramChange, StatusChannelPressure:
		return 1
	default:
		return 2
	}
}

// Rank orders events that share a tick so that sorting is stable across
// decode/encode cycles. Channel metadata first, Note Offs before Note Ons so
// a re-struck note at the same tick does not get cancelled.
func (e *Event) Rank() int {
	switch e.Kind() {
	case StatusMeta, StatusSysex, StatusSysexEnd:
		return 0
	case StatusProgramChange, StatusControlChange:
		return 1
	case StatusNoteOn:
		if e.D1 == 0 { // vel-0 form, sorts with Note Offs
			return 2
		}
		return 3
	case StatusNoteOff:
		return 2
	default:
		return 4
	}
}

// Before is the sequence sort order: tick, then rank.
func (e *Event) Before(other *Event) bool {
	if e.Tick != other.Tick {
		return e.Tick < other.Tick
	}
	return e.Rank() < other.Rank()
}
