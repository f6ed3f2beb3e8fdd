package pm

import (
	"encoding/binary"
	"fmt"
)

// PMS5003 frame layout: 0x42 0x4D start characters, a 16-bit frame
// length (28 for the standard data frame), thirteen 16-bit data
// words, and a 16-bit checksum over everything before it.
const (
	FrameSize = 32

	startByte1 = 0x42
	startByte2 = 0x4D

	payloadLength = 28
)

// parseFrame decodes and validates one 32-byte PMS5003 frame,
// returning the atmospheric-environment concentrations.
func parseFrame(frame []byte) (Concentrations, error) {
	if len(frame) != FrameSize {
		return Concentrations{}, fmt.Errorf("frame length %d, want %d", len(frame), FrameSize)
	}
	if frame[0] != startByte1 || frame[1] != startByte2 {
		return Concentrations{}, fmt.Errorf("bad start characters 0x%02x 0x%02x", frame[0], frame[1])
	}
	if l := binary.BigEndian.Uint16(frame[2:4]); l != payloadLength {
		return Concentrations{}, fmt.Errorf("payload length %d, want %d", l, payloadLength)
	}

	var sum uint16
	for _, b := range frame[:FrameSize-2] {
		sum += uint16(b)
	}
	if got := binary.BigEndian.Uint16(frame[FrameSize-2:]); got != sum {
		return Concentrations{}, fmt.Errorf("checksum 0x%04x, want 0x%04x", got, sum)
	}

	// Words 4–6 are the atmospheric-environment concentrations;
	// words 1–3 are the CF=1 factory values, which we skip.
	return Concentrations{
		PM1:  float64(binary.BigEndian.Uint16(frame[10:12])),
		PM25: float64(binary.BigEndian.Uint16(frame[12:14])),
		PM10: float64(binary.BigEndian.Uint16(frame[14:16])),
	}, nil
}
