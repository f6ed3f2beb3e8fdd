// Package calib holds the persisted calibration state for the sensor
// array: clean-air references, two-point corrections and particulate
// offsets, with a versioned file store.
package calib

import (
	"fmt"

	"github.com/sweeney/air-sensor/internal/gas"
)

// SchemaVersion is the current record schema. A stored record with a
// different version is stale and is replaced by factory defaults.
const SchemaVersion = 1

// PMOffsets are additive corrections applied to the validated
// particulate readings.
type PMOffsets struct {
	PM1  float64 `yaml:"pm1_0"`
	PM25 float64 `yaml:"pm2_5"`
	PM10 float64 `yaml:"pm10"`
}

// Record is the full calibration state for one deployed device.
// There is exactly one Record per device; the engine owns it for the
// process lifetime and persists it on every mutation.
type Record struct {
	SchemaVersion int `yaml:"schema_version"`

	// Reference is the per-channel clean-air reference: R0 in ohms
	// for MOS channels, baseline volts for MEMS channels.
	Reference map[gas.Channel]float64 `yaml:"reference"`

	// Zero and Span are the two-point linear correction. Defaults
	// (0, 1) make the correction the identity.
	Zero map[gas.Channel]float64 `yaml:"zero"`
	Span map[gas.Channel]float64 `yaml:"span"`

	PM PMOffsets `yaml:"pm_offsets"`
}

// Factory clean-air references. MOS values are R0 in ohms from the
// datasheet test circuit; MEMS values are baseline volts.
var factoryReference = map[gas.Channel]float64{
	gas.CO:   10000,
	gas.CO2:  22000,
	gas.O3:   47000,
	gas.NH3:  20000,
	gas.SO2:  15000,
	gas.NO2:  0.85,
	gas.TVOC: 0.60,
}

// Defaults returns a factory-default record.
func Defaults() *Record {
	r := &Record{
		SchemaVersion: SchemaVersion,
		Reference:     make(map[gas.Channel]float64, len(factoryReference)),
		Zero:          make(map[gas.Channel]float64, len(factoryReference)),
		Span:          make(map[gas.Channel]float64, len(factoryReference)),
	}
	for _, ch := range gas.Channels() {
		r.Reference[ch] = factoryReference[ch]
		r.Zero[ch] = 0
		r.Span[ch] = 1
	}
	return r
}

// Validate checks the record invariants. A zero or negative span
// makes the concentration transform non-monotonic and must never be
// persisted or applied.
func (r *Record) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema version %d, want %d", r.SchemaVersion, SchemaVersion)
	}
	for _, ch := range gas.Channels() {
		if _, ok := r.Reference[ch]; !ok {
			return fmt.Errorf("channel %s: missing reference", ch)
		}
		if r.Reference[ch] <= 0 {
			return fmt.Errorf("channel %s: reference must be positive", ch)
		}
		span, ok := r.Span[ch]
		if !ok {
			return fmt.Errorf("channel %s: missing span", ch)
		}
		if span <= 0 {
			return fmt.Errorf("channel %s: span must be positive, got %g", ch, span)
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		SchemaVersion: r.SchemaVersion,
		Reference:     make(map[gas.Channel]float64, len(r.Reference)),
		Zero:          make(map[gas.Channel]float64, len(r.Zero)),
		Span:          make(map[gas.Channel]float64, len(r.Span)),
		PM:            r.PM,
	}
	for k, v := range r.Reference {
		c.Reference[k] = v
	}
	for k, v := range r.Zero {
		c.Zero[k] = v
	}
	for k, v := range r.Span {
		c.Span[k] = v
	}
	return c
}
