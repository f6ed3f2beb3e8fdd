package adc

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/sweeney/air-sensor/internal/gas"
)

const (
	// DefaultBaudRate matches the sensor MCU firmware.
	DefaultBaudRate = 115200

	// staleAfter bounds how old a cached voltage may be before
	// reads fail instead of serving it.
	staleAfter = 5 * time.Second
)

// SerialReader reads the MCU's voltage feed. The firmware prints one
// reading per line, "<channel> <volts>", e.g. "co 0.4521". A
// background goroutine keeps the latest voltage per channel; reads
// never block on the wire.
type SerialReader struct {
	port serial.Port
	log  *zap.Logger

	mu     sync.RWMutex
	latest map[gas.Channel]sample
	closed bool

	done chan struct{}
}

type sample struct {
	voltage float64
	at      time.Time
}

// NewSerialReader opens the port and starts the reader goroutine.
func NewSerialReader(portName string, baudRate int, log *zap.Logger) (*SerialReader, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if log == nil {
		log = zap.NewNop()
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open adc port %s: %w", portName, err)
	}

	r := &SerialReader{
		port:   port,
		log:    log,
		latest: make(map[gas.Channel]sample),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *SerialReader) readLoop() {
	defer close(r.done)
	scanner := bufio.NewScanner(r.port)
	for scanner.Scan() {
		ch, v, err := parseLine(scanner.Text())
		if err != nil {
			r.log.Debug("adc line skipped", zap.Error(err))
			continue
		}
		r.mu.Lock()
		r.latest[ch] = sample{voltage: v, at: time.Now()}
		r.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		r.mu.RLock()
		closed := r.closed
		r.mu.RUnlock()
		if !closed {
			r.log.Warn("adc feed ended", zap.Error(err))
		}
	}
}

// parseLine parses one "<channel> <volts>" feed line.
func parseLine(line string) (gas.Channel, float64, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("malformed adc line %q", line)
	}
	ch := gas.Channel(strings.ToLower(fields[0]))
	if !gas.Valid(ch) {
		return "", 0, fmt.Errorf("unknown adc channel %q", fields[0])
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad adc voltage %q: %w", fields[1], err)
	}
	if v < 0 {
		return "", 0, fmt.Errorf("negative adc voltage %q", fields[1])
	}
	return ch, v, nil
}

// ReadVoltage returns the latest cached voltage for the channel.
func (r *SerialReader) ReadVoltage(ch gas.Channel) (float64, error) {
	r.mu.RLock()
	s, ok := r.latest[ch]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no reading yet for channel %s", ch)
	}
	if age := time.Since(s.at); age > staleAfter {
		return 0, fmt.Errorf("channel %s reading stale (%v old)", ch, age.Truncate(time.Millisecond))
	}
	return s.voltage, nil
}

// Close stops the reader and closes the port.
func (r *SerialReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	err := r.port.Close()
	<-r.done
	return err
}
