package datapoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Program layout constants. An actuator program datapoint carries a 3-byte
// device header, a step count and repeating {position, duration} records.
const (
	// ProgramHeaderSize is the device-defined header preserved verbatim.
	ProgramHeaderSize = 3

	// programStepSize is position uint8 + duration uint16.
	programStepSize = 3

	// MaxProgramDuration caps rendered step durations in seconds.
	MaxProgramDuration = 9999

	// MaxProgramPosition is the largest valid step position (percent).
	MaxProgramPosition = 100
)

// Program errors.
var (
	// ErrBadProgram indicates a malformed program payload.
	ErrBadProgram = errors.New("malformed program payload")

	// ErrBadProgramText indicates program text not matching the
	// position[/seconds];... grammar.
	ErrBadProgramText = errors.New("malformed program text")
)

// ProgramStep is one scheduled actuator movement.
type ProgramStep struct {
	// Position is the target position in percent (0-100).
	Position uint8

	// Duration is the hold time in seconds (0 = immediate next step).
	Duration uint16
}

// DecodeProgram parses a program datapoint payload into its preserved
// header and steps.
func DecodeProgram(raw []byte) (header []byte, steps []ProgramStep, err error) {
	if len(raw) < ProgramHeaderSize+1 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBadProgram, len(raw))
	}
	count := int(raw[ProgramHeaderSize])
	want := ProgramHeaderSize + 1 + count*programStepSize
	if len(raw) < want {
		return nil, nil, fmt.Errorf("%w: %d steps need %d bytes, have %d", ErrBadProgram, count, want, len(raw))
	}

	header = append([]byte(nil), raw[:ProgramHeaderSize]...)
	steps = make([]ProgramStep, count)
	for i := 0; i < count; i++ {
		rec := raw[ProgramHeaderSize+1+i*programStepSize:]
		steps[i] = ProgramStep{
			Position: rec[0],
			Duration: binary.BigEndian.Uint16(rec[1:3]),
		}
	}
	return header, steps, nil
}

// EncodeProgram builds a program datapoint payload from a header and steps.
// A nil header encodes as zeros; a device round trip preserves whatever
// header the device reported.
func EncodeProgram(header []byte, steps []ProgramStep) ([]byte, error) {
	if len(steps) > 0xFF {
		return nil, fmt.Errorf("%w: %d steps", ErrBadProgram, len(steps))
	}
	out := make([]byte, ProgramHeaderSize+1+len(steps)*programStepSize)
	copy(out, header)
	out[ProgramHeaderSize] = byte(len(steps))
	for i, step := range steps {
		rec := out[ProgramHeaderSize+1+i*programStepSize:]
		rec[0] = step.Position
		binary.BigEndian.PutUint16(rec[1:3], step.Duration)
	}
	return out, nil
}

// ParseProgramText parses the textual program grammar
// "position[/seconds];position[/seconds];..." where position is a
// percentage integer and the optional seconds default to 0.
func ParseProgramText(text string) ([]ProgramStep, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadProgramText)
	}
	parts := strings.Split(text, ";")
	steps := make([]ProgramStep, 0, len(parts))
	for _, part := range parts {
		posText, durText, hasDur := strings.Cut(part, "/")

		pos, err := strconv.ParseUint(posText, 10, 8)
		if err != nil || pos > MaxProgramPosition {
			return nil, fmt.Errorf("%w: position %q", ErrBadProgramText, posText)
		}

		var dur uint64
		if hasDur {
			dur, err = strconv.ParseUint(durText, 10, 16)
			if err != nil || dur > MaxProgramDuration {
				return nil, fmt.Errorf("%w: duration %q", ErrBadProgramText, durText)
			}
		}

		steps = append(steps, ProgramStep{Position: uint8(pos), Duration: uint16(dur)})
	}
	return steps, nil
}

// WithSteps returns a copy of a program value with the steps replaced. The
// device header captured at decode time is kept, so writing the copy back
// does not clobber header bytes the firmware cares about.
func (v Value) WithSteps(steps []ProgramStep) Value {
	if !v.IsProgram() {
		return NewProgram(steps)
	}
	out := v
	out.steps = append([]ProgramStep(nil), steps...)
	return out
}

// RenderProgramText renders steps back to the textual grammar. Zero
// durations are omitted, so rendering is semantically (not byte-) identical
// to the parsed input. Durations beyond the cap are clamped.
func RenderProgramText(steps []ProgramStep) string {
	var sb strings.Builder
	for i, step := range steps {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Itoa(int(step.Position)))
		dur := step.Duration
		if dur > MaxProgramDuration {
			dur = MaxProgramDuration
		}
		if dur > 0 {
			sb.WriteByte('/')
			sb.WriteString(strconv.Itoa(int(dur)))
		}
	}
	return sb.String()
}
