package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilianp07/vpp/infra/logger"
	infmqtt "github.com/kilianp07/vpp/infra/mqtt"
)

func main() {
	cfg, err := parseFlags()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	_ = logger.SetLevel(level)
	log := logger.New("simulator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newMQTTClient(cfg.Broker, fmt.Sprintf("vpp-sim-%d", time.Now().UnixNano()))
	if err != nil {
		log.Errorf("connect: %v", err)
		os.Exit(1)
	}
	defer cli.Disconnect(250)

	var wg sync.WaitGroup
	for i, spec := range cfg.Plants {
		p := NewSimulatedPlant(spec, cfg.RampKWPerSec, cfg.Noise, time.Now().UnixNano()+int64(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runPlant(ctx, cli, p, cfg); err != nil {
				log.Errorf("plant %d: %v", p.ID, err)
			}
		}()
	}
	log.Infof("simulating %d plants on %s", len(cfg.Plants), cfg.Broker)
	wg.Wait()
}

func parseFlags() (Config, error) {
	var cfg Config
	var plants string
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.TopicPrefix, "topic-prefix", infmqtt.DefaultTopicPrefix, "MQTT topic prefix")
	flag.StringVar(&plants, "plants", "1:100,2:50", "plants as id:max_kw pairs")
	flag.DurationVar(&cfg.Interval, "interval", 5*time.Second, "telemetry publish interval")
	flag.Float64Var(&cfg.RampKWPerSec, "ramp", 0, "ramp rate in kW/s, 0 for instant response")
	flag.Float64Var(&cfg.Noise, "noise", 0.01, "relative measurement noise")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	var err error
	cfg.Plants, err = ParsePlants(plants)
	return cfg, err
}
