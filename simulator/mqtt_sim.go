package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/vpp/infra/logger"
	infmqtt "github.com/kilianp07/vpp/infra/mqtt"
)

type telemetryMessage struct {
	PlantID  int     `json:"plant_id"`
	OutputKW float64 `json:"output_kw"`
	TS       int64   `json:"ts"`
}

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

func plantTopic(prefix string, id int, kind string) string {
	return fmt.Sprintf("%s/%d/%s", strings.TrimSuffix(prefix, "/"), id, kind)
}

// runPlant subscribes to the setpoints of p and publishes its output every
// interval until ctx is done.
func runPlant(ctx context.Context, cli paho.Client, p *SimulatedPlant, cfg Config) error {
	log := logger.ForPlant("simulator", p.ID)
	onSetpoint := func(_ paho.Client, msg paho.Message) {
		var sp infmqtt.Setpoint
		if err := json.Unmarshal(msg.Payload(), &sp); err != nil {
			log.Warnf("decode setpoint: %v", err)
			return
		}
		applied := p.ApplySetpoint(sp.SetpointKW)
		log.Infof("setpoint %s -> %.2f kW", sp.CommandID, applied)
	}
	if token := cli.Subscribe(plantTopic(cfg.TopicPrefix, p.ID, "setpoint"), 1, onSetpoint); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer cli.Unsubscribe(plantTopic(cfg.TopicPrefix, p.ID, "setpoint"))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			payload, err := json.Marshal(telemetryMessage{
				PlantID:  p.ID,
				OutputKW: p.Step(cfg.Interval),
				TS:       now.Unix(),
			})
			if err != nil {
				return err
			}
			token := cli.Publish(plantTopic(cfg.TopicPrefix, p.ID, "telemetry"), 0, false, payload)
			if token.Wait() && token.Error() != nil {
				log.Errorf("publish telemetry: %v", token.Error())
			}
		}
	}
}
