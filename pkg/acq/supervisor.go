// Package acq drives the pressure sampling loop on top of a gauge device,
// publishing each reading to a downstream feed.
package acq

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solab/hvgagent/pkg/feed"
	"github.com/solab/hvgagent/pkg/gauge"
)

// Terminal outcomes of starting, running or stopping an acquisition session.
var (
	ErrAlreadyRunning = errors.New("acquisition already running")
	ErrNotRunning     = errors.New("acquisition not running")
	ErrNotConnected   = errors.New("could not connect to pressure gauge")
	ErrConnectionLost = errors.New("connection lost")
)

const (
	// DefaultSamplingFrequency is the sample rate in Hz when none is given.
	DefaultSamplingFrequency = 2.5

	blockName = "pressure"

	// readOverhead approximates the fixed time one ReadPressure call spends
	// on the wire; it is subtracted from the sample period.
	readOverhead = 10 * time.Millisecond
)

// Params configures one acquisition session.
type Params struct {
	SamplingFrequency float64 // samples per second
	TestMode          bool    // run exactly one iteration, then exit
}

// Supervisor runs at most one cooperatively stoppable sampling loop at a
// time. A second start attempt fails fast while a session holds the lock.
type Supervisor struct {
	device  gauge.Device
	feed    feed.Feed
	session *Session

	lock    sync.Mutex // exclusivity lock, acquired with TryLock only
	running atomic.Bool

	mu   sync.Mutex
	done chan error
}

// New creates a supervisor. A nil session gets a fresh one.
func New(device gauge.Device, sink feed.Feed, session *Session) *Supervisor {
	if session == nil {
		session = NewSession()
	}
	return &Supervisor{
		device:  device,
		feed:    sink,
		session: session,
	}
}

// Session returns the inspectable session state.
func (s *Supervisor) Session() *Session {
	return s.session
}

// Running reports whether a sampling loop is currently active.
func (s *Supervisor) Running() bool {
	return s.running.Load()
}

// Start validates the gauge connection and launches the sampling loop.
// It fails fast with ErrAlreadyRunning if a session holds the lock and with
// ErrNotConnected if the gauge does not respond; in both cases nothing is
// left running. Use Wait for the session's terminal outcome.
func (s *Supervisor) Start(p Params) error {
	if p.SamplingFrequency <= 0 {
		p.SamplingFrequency = DefaultSamplingFrequency
	}

	if !s.lock.TryLock() {
		log.Printf("acq: start rejected, acquisition already running")
		return ErrAlreadyRunning
	}

	if !s.device.CheckConnection() {
		s.lock.Unlock()
		log.Printf("acq: could not connect to gauge, check the configured port")
		return ErrNotConnected
	}

	s.running.Store(true)
	s.session.SetStatus(StatusRunning)

	done := make(chan error, 1)
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()

	go s.run(p, done)
	return nil
}

// Wait blocks until the current session terminates and returns its outcome:
// nil for a clean exit, ErrConnectionLost for a fatal mid-run disconnect.
// Intended for a single waiter per session.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return ErrNotRunning
	}
	return <-done
}

// Run starts a session and waits for it to finish.
func (s *Supervisor) Run(p Params) error {
	if err := s.Start(p); err != nil {
		return err
	}
	return s.Wait()
}

// Stop requests a cooperative stop of the running session and closes the
// gauge. The loop observes the request at its next iteration boundary.
func (s *Supervisor) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	if err := s.device.Close(); err != nil {
		log.Printf("acq: closing gauge on stop: %v", err)
	}
	log.Printf("acq: stop requested, gauge connection now closed")
	return nil
}

// run executes the sampling loop and performs the shutdown sequence: flush
// buffered samples, close the device, release the lock, report the outcome.
func (s *Supervisor) run(p Params, done chan error) {
	err := s.sample(p)

	if flushErr := s.feed.Flush(); flushErr != nil {
		log.Printf("acq: feed flush: %v", flushErr)
	}
	if closeErr := s.device.Close(); closeErr != nil {
		log.Printf("acq: closing gauge: %v", closeErr)
	}

	if err != nil {
		s.session.SetStatus(StatusFailed)
		log.Printf("acq: acquisition failed: %v", err)
	} else {
		s.session.SetStatus(StatusStopped)
		log.Printf("acq: acquisition exited cleanly")
	}

	s.running.Store(false)
	s.lock.Unlock()
	done <- err
}

// sample is the acquisition loop. Read failures are classified: if the
// connection check still passes the failure is transient and the loop
// continues, otherwise the session terminates with ErrConnectionLost.
// Unparseable readings are not failures; the sentinel value is published
// like any other sample.
func (s *Supervisor) sample(p Params) error {
	sleep := time.Duration(float64(time.Second)/p.SamplingFrequency) - readOverhead
	if sleep < 0 {
		sleep = 0
	}

	for s.running.Load() {
		now := time.Now()

		reading, err := s.device.ReadPressure()
		if err != nil {
			if !s.running.Load() {
				// Stop closed the port out from under a read in flight.
				return nil
			}
			if s.device.CheckConnection() {
				log.Printf("acq: transient read failure, retrying: %v", err)
				continue
			}
			log.Printf("acq: read failed and gauge unreachable: %v", err)
			return ErrConnectionLost
		}

		block := feed.Block{
			Timestamp: now,
			BlockName: blockName,
			Data:      map[string]float64{"pressure": reading.Value},
		}
		if err := s.feed.Publish(block); err != nil {
			log.Printf("acq: publish: %v", err)
		}

		s.session.UpdateFields(map[string]any{
			"pressure":  reading.Value,
			"timestamp": float64(now.UnixNano()) / float64(time.Second),
		})

		time.Sleep(sleep)

		if p.TestMode {
			break
		}
	}
	return nil
}
