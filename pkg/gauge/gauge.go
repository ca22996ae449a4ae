package gauge

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate the HVG-2020 ships configured for.
	DefaultBaudRate = 19200
	// DefaultReadTimeout bounds a single read on the serial port.
	DefaultReadTimeout = 100 * time.Millisecond

	// Invalid marks a reading whose response line did not parse as a number.
	Invalid = -99

	// signature is the prefix an identify response must start with.
	signature = "HVG-2020"
	// signatureProbes is how many identify attempts CheckConnection makes
	// before giving up.
	signatureProbes = 3

	defaultSettleDelay = 100 * time.Millisecond
	defaultCooldown    = 5 * time.Second
)

// Wire commands understood by the gauge. Responses are single lines
// terminated by "\r>".
var (
	cmdReadPressure = []byte("p\r\n")
	cmdIdentify     = []byte("s1\r\n")
)

// ErrClosed is returned when a reading is requested on a closed gauge.
// That is a caller bug, not a recoverable I/O failure.
var ErrClosed = errors.New("gauge: port is closed")

// Reading is one pressure measurement in mbar. Value is Invalid when the
// response line did not parse; Raw keeps the unparsed text for diagnostics.
type Reading struct {
	Value     float64
	Raw       string
	Timestamp time.Time
}

// Invalid reports whether the reading carries the unparseable-response
// sentinel instead of a measured value.
func (r Reading) Invalid() bool {
	return r.Value == Invalid
}

type opener func(portName string, mode *serial.Mode) (serial.Port, error)

// Gauge owns one serial channel to an HVG-2020 pressure gauge and translates
// its line protocol into typed readings.
type Gauge struct {
	port        string
	baudRate    int
	readTimeout time.Duration
	settleDelay time.Duration
	cooldown    time.Duration
	probes      int
	open        opener

	mu        sync.Mutex
	conn      serial.Port
	connected bool
}

// Option configures a Gauge before it is opened.
type Option func(*Gauge)

// WithBaudRate overrides the default baud rate. Zero keeps the default.
func WithBaudRate(baud int) Option {
	return func(g *Gauge) {
		if baud > 0 {
			g.baudRate = baud
		}
	}
}

// WithReadTimeout overrides the per-read timeout on the port.
func WithReadTimeout(d time.Duration) Option {
	return func(g *Gauge) {
		if d > 0 {
			g.readTimeout = d
		}
	}
}

// Test hooks. Production code always runs with the defaults above.
func withOpener(o opener) Option {
	return func(g *Gauge) { g.open = o }
}

func withSettleDelay(d time.Duration) Option {
	return func(g *Gauge) { g.settleDelay = d }
}

func withCooldown(d time.Duration) Option {
	return func(g *Gauge) { g.cooldown = d }
}

// New opens the serial channel to the gauge. Framing is fixed at
// 8 data bits, no parity, one stop bit, no flow control.
func New(port string, opts ...Option) (*Gauge, error) {
	g := &Gauge{
		port:        port,
		baudRate:    DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
		settleDelay: defaultSettleDelay,
		cooldown:    defaultCooldown,
		probes:      signatureProbes,
		open:        serial.Open,
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.reopen(); err != nil {
		return nil, fmt.Errorf("gauge: open %s: %w", port, err)
	}
	return g, nil
}

// reopen establishes the serial connection. Callers must hold g.mu, except
// during construction.
func (g *Gauge) reopen() error {
	mode := &serial.Mode{
		BaudRate: g.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	conn, err := g.open(g.port, mode)
	if err != nil {
		return err
	}
	if err := conn.SetReadTimeout(g.readTimeout); err != nil {
		conn.Close()
		return err
	}

	g.conn = conn
	g.connected = true
	return nil
}

// ReadPressure asks the gauge for the current pressure in mbar. A garbled
// response is not an error: the returned reading carries the Invalid
// sentinel and the raw text. An error means the port could not be written
// or read at all.
func (g *Gauge) ReadPressure() (Reading, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return Reading{}, ErrClosed
	}

	ts := time.Now()
	if _, err := g.conn.Write(cmdReadPressure); err != nil {
		return Reading{}, fmt.Errorf("gauge: write pressure command: %w", err)
	}

	// The gauge needs a moment before its response is on the wire.
	time.Sleep(g.settleDelay)

	raw, err := g.readLine()
	if err != nil {
		return Reading{}, fmt.Errorf("gauge: read pressure response: %w", err)
	}

	reading := Reading{Raw: raw, Timestamp: ts}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("gauge: unparseable pressure response %q", raw)
		reading.Value = Invalid
		return reading, nil
	}
	reading.Value = value
	return reading, nil
}

// CheckConnection verifies the link is live and talking to an HVG-2020.
// A closed port gets one reopen attempt first. Then the identify command is
// sent up to signatureProbes times; a response starting with the device
// signature means connected. An I/O error during the probe triggers a
// close, cooldown and single reopen instead; a successful reopen is
// reported as connected without re-running the identify probe.
func (g *Gauge) CheckConnection() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		if err := g.reopen(); err != nil {
			log.Printf("gauge: reopen %s: %v", g.port, err)
			return false
		}
	}

	for i := 0; i < g.probes; i++ {
		if _, err := g.conn.Write(cmdIdentify); err != nil {
			log.Printf("gauge: identify write failed: %v", err)
			return g.resetAndReopen()
		}

		resp, err := g.readLine()
		if err != nil {
			log.Printf("gauge: identify read failed: %v", err)
			return g.resetAndReopen()
		}

		log.Printf("gauge: identify attempt %d received %q", i+1, resp)
		if strings.HasPrefix(resp, signature) {
			if i > 0 {
				log.Printf("gauge: identify passed on attempt %d", i+1)
			}
			return true
		}
	}
	return false
}

// resetAndReopen closes the port, waits out the cooldown and makes exactly
// one reopen attempt. Device identity is not re-verified on this path.
// Callers must hold g.mu.
func (g *Gauge) resetAndReopen() bool {
	g.closeLocked()
	log.Printf("gauge: holding %s closed for %s before reopen", g.port, g.cooldown)
	time.Sleep(g.cooldown)

	if err := g.reopen(); err != nil {
		log.Printf("gauge: reopen after cooldown failed: %v", err)
		return false
	}
	log.Printf("gauge: reopened %s", g.port)
	return true
}

// Close releases the serial channel. Safe to call more than once.
func (g *Gauge) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closeLocked()
}

func (g *Gauge) closeLocked() error {
	if !g.connected {
		return nil
	}
	g.connected = false
	err := g.conn.Close()
	g.conn = nil
	if err != nil {
		return fmt.Errorf("gauge: close: %w", err)
	}
	return nil
}

// IsConnected reports whether the serial channel is currently open.
func (g *Gauge) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// readLine accumulates bytes until a newline or until the read timeout
// expires, then strips the gauge's "\r>" terminator and surrounding
// whitespace. Callers must hold g.mu.
func (g *Gauge) readLine() (string, error) {
	var line []byte
	buf := make([]byte, 64)
	for {
		n, err := g.conn.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			// Read timeout: the device sent everything it is going to.
			break
		}
		line = append(line, buf[:n]...)
		if line[len(line)-1] == '\n' {
			break
		}
	}
	return trimResponse(string(line)), nil
}

// trimResponse removes the "\r>" framing artifact and whitespace from a
// response line.
func trimResponse(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r>", ""))
}
