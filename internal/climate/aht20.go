package climate

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	aht20Addr = 0x38

	cmdInitialize = 0xBE
	cmdTrigger    = 0xAC
	cmdSoftReset  = 0xBA

	statusBusy       = 0x80
	statusCalibrated = 0x08

	measureDelay = 80 * time.Millisecond
)

// AHT20 reads temperature and humidity from an AHT20 over I²C.
type AHT20 struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// NewAHT20 opens the named I²C bus ("" for the first available) and
// initializes the sensor.
func NewAHT20(busName string) (*AHT20, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	a := &AHT20{bus: bus, dev: i2c.Dev{Bus: bus, Addr: aht20Addr}}
	if err := a.initialize(); err != nil {
		bus.Close()
		return nil, err
	}
	return a, nil
}

func (a *AHT20) initialize() error {
	status := make([]byte, 1)
	if err := a.dev.Tx(nil, status); err != nil {
		return fmt.Errorf("read aht20 status: %w", err)
	}
	if status[0]&statusCalibrated != 0 {
		return nil
	}
	if err := a.dev.Tx([]byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return fmt.Errorf("initialize aht20: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Read triggers one measurement and returns temperature (°C) and
// relative humidity (%). It blocks for the sensor's conversion time
// (~80 ms); the engine calls it once per poll cycle.
func (a *AHT20) Read() (float64, float64, error) {
	if err := a.dev.Tx([]byte{cmdTrigger, 0x33, 0x00}, nil); err != nil {
		return 0, 0, fmt.Errorf("trigger aht20 measurement: %w", err)
	}
	time.Sleep(measureDelay)

	buf := make([]byte, 7)
	if err := a.dev.Tx(nil, buf); err != nil {
		return 0, 0, fmt.Errorf("read aht20 measurement: %w", err)
	}
	if buf[0]&statusBusy != 0 {
		return 0, 0, fmt.Errorf("aht20 still busy after %v", measureDelay)
	}
	if crc := crc8(buf[:6]); crc != buf[6] {
		return 0, 0, fmt.Errorf("aht20 crc mismatch: computed %#02x, frame %#02x", crc, buf[6])
	}

	t, h := convertAHT20(buf)
	return t, h, nil
}

// crc8 computes the sensor's frame checksum (poly 0x31, init 0xFF)
// over the status and data bytes.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// convertAHT20 decodes the 20-bit humidity and temperature fields
// from a 7-byte measurement frame.
func convertAHT20(buf []byte) (temperatureC, humidityPct float64) {
	rawH := uint32(buf[1])<<12 | uint32(buf[2])<<4 | uint32(buf[3])>>4
	rawT := (uint32(buf[3])&0x0F)<<16 | uint32(buf[4])<<8 | uint32(buf[5])

	const full = 1 << 20
	humidityPct = float64(rawH) / full * 100
	temperatureC = float64(rawT)/full*200 - 50
	return temperatureC, humidityPct
}

// Close releases the I²C bus.
func (a *AHT20) Close() error {
	return a.bus.Close()
}
