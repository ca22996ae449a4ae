package feed

import (
	"log"
	"sync"
	"time"
)

// Block is one named, timestamped group of measurements. Ownership passes
// to the feed on publish.
type Block struct {
	Timestamp time.Time
	BlockName string
	Data      map[string]float64
}

// Feed accepts blocks from a single producer. Publish is called in
// timestamp order; Flush forces anything buffered downstream and is issued
// when an acquisition session ends.
type Feed interface {
	Publish(Block) error
	Flush() error
}

// Collector buffers blocks in memory. It serves as a test instrument and
// as a sink of last resort when no downstream is configured.
type Collector struct {
	mu      sync.Mutex
	blocks  []Block
	flushes int
}

// Ensure Collector implements Feed.
var _ Feed = (*Collector)(nil)

// NewCollector creates an empty in-memory collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Publish appends the block to the in-memory buffer.
func (c *Collector) Publish(b Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, b)
	return nil
}

// Flush records that a flush was requested. Blocks stay retrievable.
func (c *Collector) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

// Blocks returns a copy of everything published so far.
func (c *Collector) Blocks() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Flushes returns how many times Flush has been called.
func (c *Collector) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// LogSink writes one log line per block. Useful when running without a
// configured downstream.
type LogSink struct{}

// Ensure LogSink implements Feed.
var _ Feed = (*LogSink)(nil)

// NewLogSink creates a sink that logs every published block.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Publish logs the block.
func (s *LogSink) Publish(b Block) error {
	log.Printf("feed: %s %s %v", b.BlockName, b.Timestamp.Format(time.RFC3339Nano), b.Data)
	return nil
}

// Flush is a no-op.
func (s *LogSink) Flush() error {
	return nil
}
