// Package influx publishes feed blocks to InfluxDB 2.x.
package influx

import (
	"errors"
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/solab/hvgagent/pkg/feed"
)

// DefaultFlushInterval is the aggregation window for buffered points.
const DefaultFlushInterval = 60 * time.Second

// Config holds the InfluxDB connection parameters.
type Config struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	FlushInterval time.Duration
}

// Writer buffers feed blocks and writes them to InfluxDB on a fixed window,
// using the client's non-blocking write API. Flush pushes the buffer out
// immediately.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Ensure Writer implements feed.Feed.
var _ feed.Feed = (*Writer)(nil)

// New creates a Writer and starts draining the client's async error channel.
func New(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx: url required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	opts := influxdb2.DefaultOptions().
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	go func() {
		for err := range w.writeAPI.Errors() {
			log.Printf("influx: async write: %v", err)
		}
	}()

	return w, nil
}

// Publish converts the block to a point and hands it to the buffered
// write API.
func (w *Writer) Publish(b feed.Block) error {
	w.writeAPI.WritePoint(blockPoint(b))
	return nil
}

// Flush forces all buffered points out.
func (w *Writer) Flush() error {
	w.writeAPI.Flush()
	return nil
}

// Close flushes and shuts down the underlying client.
func (w *Writer) Close() error {
	w.writeAPI.Flush()
	w.client.Close()
	return nil
}

// blockPoint maps a feed block to an influx point: measurement is the block
// name, one field per data entry, timestamp taken from the block.
func blockPoint(b feed.Block) *write.Point {
	p := influxdb2.NewPointWithMeasurement(b.BlockName)
	for k, v := range b.Data {
		p.AddField(k, v)
	}
	p.SetTime(b.Timestamp)
	return p
}
