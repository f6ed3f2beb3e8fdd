package pm

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is fixed by the PMS5003.
	DefaultBaudRate = 9600

	// staleAfter bounds how old a cached frame may be before reads
	// fail instead of serving it. The sensor emits roughly one
	// frame per second in active mode.
	staleAfter = 10 * time.Second
)

// PMS5003 reads framed particulate data over a serial port. A
// background goroutine synchronizes to frame boundaries and caches
// the latest valid frame; Read never blocks on the wire.
type PMS5003 struct {
	port serial.Port
	log  *zap.Logger

	mu     sync.RWMutex
	latest Concentrations
	at     time.Time
	closed bool

	done chan struct{}
}

// NewPMS5003 opens the port and starts the frame reader.
func NewPMS5003(portName string, baudRate int, log *zap.Logger) (*PMS5003, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if log == nil {
		log = zap.NewNop()
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open pm port %s: %w", portName, err)
	}

	p := &PMS5003{
		port: port,
		log:  log,
		done: make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// readLoop hunts for the 0x42 0x4D start characters, reads the rest
// of the frame, and caches it if the checksum holds. Corrupt frames
// are dropped and the hunt restarts.
func (p *PMS5003) readLoop() {
	defer close(p.done)
	r := bufio.NewReader(p.port)
	frame := make([]byte, FrameSize)

	for {
		b, err := r.ReadByte()
		if err != nil {
			p.logUnlessClosed(err)
			return
		}
		if b != startByte1 {
			continue
		}
		b2, err := r.ReadByte()
		if err != nil {
			p.logUnlessClosed(err)
			return
		}
		if b2 != startByte2 {
			continue
		}

		frame[0], frame[1] = startByte1, startByte2
		if _, err := io.ReadFull(r, frame[2:]); err != nil {
			p.logUnlessClosed(err)
			return
		}

		c, err := parseFrame(frame)
		if err != nil {
			p.log.Debug("pm frame dropped", zap.Error(err))
			continue
		}
		p.mu.Lock()
		p.latest = c
		p.at = time.Now()
		p.mu.Unlock()
	}
}

func (p *PMS5003) logUnlessClosed(err error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if !closed {
		p.log.Warn("pm feed ended", zap.Error(err))
	}
}

// Read returns the latest checksum-verified concentrations.
func (p *PMS5003) Read() (Concentrations, error) {
	p.mu.RLock()
	c, at := p.latest, p.at
	p.mu.RUnlock()
	if at.IsZero() {
		return Concentrations{}, fmt.Errorf("no pm frame received yet")
	}
	if age := time.Since(at); age > staleAfter {
		return Concentrations{}, fmt.Errorf("pm frame stale (%v old)", age.Truncate(time.Millisecond))
	}
	return c, nil
}

// Close stops the reader and closes the port.
func (p *PMS5003) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	err := p.port.Close()
	<-p.done
	return err
}
