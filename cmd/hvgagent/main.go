package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/solab/hvgagent/internal/handlers"
	"github.com/solab/hvgagent/pkg/acq"
	"github.com/solab/hvgagent/pkg/config"
	"github.com/solab/hvgagent/pkg/feed"
	"github.com/solab/hvgagent/pkg/feed/influx"
	"github.com/solab/hvgagent/pkg/gauge"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("port", "", "Serial port override (e.g. /dev/ttyUSB0), or 'mock'")
		baudFlag   = flag.Int("baud", 0, "Baud rate override")
		freqFlag   = flag.Float64("sampling-frequency", 0, "Sampling frequency in Hz")
		modeFlag   = flag.String("mode", "acq", "Run mode: acq or test (single sample)")
		httpFlag   = flag.String("http", "", "HTTP listen address override")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *baudFlag > 0 {
		cfg.Serial.Baud = *baudFlag
	}
	if *freqFlag > 0 {
		cfg.Sampling.FrequencyHz = *freqFlag
	}
	if *httpFlag != "" {
		cfg.HTTP.Addr = *httpFlag
	}
	switch *modeFlag {
	case "acq":
	case "test":
		cfg.Sampling.TestMode = true
	default:
		log.Fatalf("unknown mode %q (want acq or test)", *modeFlag)
	}

	var device gauge.Device
	if cfg.Serial.Port == "mock" {
		log.Printf("using simulated gauge")
		device = gauge.NewMock(&cfg.Mock)
	} else {
		device, err = gauge.New(cfg.Serial.Port, gauge.WithBaudRate(cfg.Serial.Baud))
		if err != nil {
			log.Fatalf("failed to open gauge on %s: %v", cfg.Serial.Port, err)
		}
	}

	var sink feed.Feed
	var influxWriter *influx.Writer
	if cfg.Feed.InfluxURL != "" {
		influxWriter, err = influx.New(influx.Config{
			URL:           cfg.Feed.InfluxURL,
			Token:         os.Getenv("INFLUXDB_TOKEN"),
			Org:           cfg.Feed.InfluxOrg,
			Bucket:        cfg.Feed.InfluxBucket,
			FlushInterval: cfg.Feed.FlushInterval,
		})
		if err != nil {
			log.Fatalf("failed to create influx writer: %v", err)
		}
		sink = influxWriter
	} else {
		log.Printf("no influx url configured, logging samples instead")
		sink = feed.NewLogSink()
	}

	sup := acq.New(device, sink, nil)
	params := acq.Params{
		SamplingFrequency: cfg.Sampling.FrequencyHz,
		TestMode:          cfg.Sampling.TestMode,
	}

	router := handlers.NewRouter(&handlers.AcqHandler{Sup: sup, Params: params})
	go func() {
		if err := router.Run(cfg.HTTP.Addr); err != nil {
			log.Printf("http server: %v", err)
		}
	}()

	if err := sup.Start(params); err != nil {
		log.Fatalf("failed to start acquisition: %v", err)
	}
	log.Printf("acquisition started on %s at %.2f Hz", cfg.Serial.Port, params.SamplingFrequency)

	done := make(chan error, 1)
	go func() { done <- sup.Wait() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-sig:
		log.Printf("received %s, stopping acquisition", s)
		if err := sup.Stop(); err != nil {
			log.Printf("stop: %v", err)
		}
		runErr = <-done
	case runErr = <-done:
	}

	if influxWriter != nil {
		if err := influxWriter.Close(); err != nil {
			log.Printf("closing influx writer: %v", err)
		}
	}

	if runErr != nil {
		log.Fatalf("acquisition failed: %v", runErr)
	}
	log.Printf("acquisition exited cleanly")
}
