package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/vpp/config"
	coremetrics "github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/infra/logger"
	infmqtt "github.com/kilianp07/vpp/infra/mqtt"
)

// PlantLookup resolves plant ids reported on telemetry topics.
type PlantLookup interface {
	Get(id int) (model.Plant, error)
}

// Reading is the last output reported by a plant.
type Reading struct {
	PlantID  int       `json:"plant_id"`
	OutputKW float64   `json:"output_kw"`
	Time     time.Time `json:"timestamp"`
	Stale    bool      `json:"stale"`
}

// Manager listens to plant telemetry pushed over MQTT. Readings are only
// observed: the registry is never modified.
type Manager struct {
	cfg    config.TelemetryConfig
	cli    paho.Client
	plants PlantLookup
	sink   coremetrics.PlantOutputRecorder
	log    logger.Logger
	now    func() time.Time

	closeOnce sync.Once

	mu     sync.RWMutex
	latest map[int]Reading
}

// NewManager prepares a manager without connecting. Use Connect to attach an
// MQTT client.
func NewManager(cfg config.TelemetryConfig, plants PlantLookup, sink coremetrics.PlantOutputRecorder) *Manager {
	cfg.SetDefaults()
	return &Manager{
		cfg:    cfg,
		plants: plants,
		sink:   sink,
		log:    logger.New("telemetry"),
		now:    time.Now,
		latest: make(map[int]Reading),
	}
}

// Connect opens a dedicated MQTT connection for telemetry.
func (m *Manager) Connect(mqttCfg infmqtt.Config) error {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.cli = cli
	return nil
}

// Topic is the wildcard subscription covering every plant.
func (m *Manager) Topic() string {
	return strings.TrimSuffix(m.cfg.TopicPrefix, "/") + "/+/telemetry"
}

// Start subscribes and blocks until ctx is done, then closes the connection.
func (m *Manager) Start(ctx context.Context) {
	if m.cli == nil {
		m.log.Warnf("telemetry manager started without MQTT connection")
		<-ctx.Done()
		return
	}
	if token := m.cli.Subscribe(m.Topic(), m.cfg.QoS, m.onPush); token.Wait() && token.Error() != nil {
		m.log.Errorf("subscribe telemetry: %v", token.Error())
	}
	<-ctx.Done()
	m.Close()
}

// Close disconnects the telemetry client opened by Connect. It may be called
// whether or not Start ran, and more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.cli != nil && m.cli.IsConnected() {
			m.cli.Disconnect(250)
		}
	})
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	if err := m.process(msg.Payload(), msg.Topic()); err != nil {
		m.log.Errorf("telemetry %s: %v", msg.Topic(), err)
	}
}

// extractID returns the plant id segment of <prefix>/<id>/telemetry.
func extractID(topic string) (int, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[len(parts)-2])
	return id, err == nil
}

func (m *Manager) process(payload []byte, topic string) error {
	var msg struct {
		PlantID  *int    `json:"plant_id"`
		OutputKW float64 `json:"output_kw"`
		TS       *int64  `json:"ts"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	var id int
	if msg.PlantID != nil {
		id = *msg.PlantID
	} else if tid, ok := extractID(topic); ok {
		id = tid
	} else {
		return fmt.Errorf("missing plant id")
	}
	if m.plants != nil {
		if _, err := m.plants.Get(id); err != nil {
			return err
		}
	}
	if msg.OutputKW < 0 {
		msg.OutputKW = 0
	}
	ts := m.now()
	if msg.TS != nil {
		ts = time.Unix(*msg.TS, 0)
	}
	m.mu.Lock()
	m.latest[id] = Reading{PlantID: id, OutputKW: msg.OutputKW, Time: ts}
	m.mu.Unlock()
	if m.sink != nil {
		return m.sink.RecordPlantOutput(coremetrics.PlantOutput{PlantID: id, OutputKW: msg.OutputKW, Time: ts})
	}
	return nil
}

// Latest returns the last reading of a plant.
func (m *Manager) Latest(id int) (Reading, bool) {
	m.mu.RLock()
	r, ok := m.latest[id]
	m.mu.RUnlock()
	if ok {
		r.Stale = m.now().Sub(r.Time) > time.Duration(m.cfg.StaleSeconds)*time.Second
	}
	return r, ok
}
