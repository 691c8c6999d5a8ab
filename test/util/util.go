// Package util holds helpers for the VPP integration tests: readiness
// polling for the HTTP API and disposable Mosquitto and Redis containers
// started with testcontainers.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	HTTPReadyTimeout      = 5 * time.Second
	MosquittoReadyTimeout = 5 * time.Second
	RedisReadyTimeout     = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// poll calls probe until it succeeds or ctx is done.
func poll(ctx context.Context, what string, probe func() bool) error {
	for {
		if probe() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

// WaitForHTTP polls url until it responds with HTTP 200.
func WaitForHTTP(ctx context.Context, url string) error {
	return poll(ctx, "server not ready", func() bool {
		code, _, err := get(ctx, url)
		return err == nil && code == http.StatusOK
	})
}

// WaitForMetric polls a Prometheus endpoint until its output contains substr,
// e.g. "vpp_available_capacity_kw 150".
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	return poll(ctx, fmt.Sprintf("metric %q not found", substr), func() bool {
		_, body, err := get(ctx, metricsURL)
		return err == nil && strings.Contains(body, substr)
	})
}

// startContainer runs req and returns host:port of the mapped port.
func startContainer(ctx context.Context, req tc.ContainerRequest, port string) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	mapped, err := cont.MappedPort(ctx, nat.Port(port))
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), cleanup, nil
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// StartMosquitto launches a throwaway broker for setpoint and telemetry
// tests. It returns the tcp:// broker URL and a cleanup function.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "vpp-mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	addr, stop, err := startContainer(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, "1883")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	cleanup := func() {
		stop()
		_ = os.RemoveAll(dir)
	}

	broker := "tcp://" + addr
	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	err = poll(waitCtx, "mosquitto not ready", func() bool {
		cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("vpp-probe"))
		token := cli.Connect()
		if token.Wait() && token.Error() != nil {
			return false
		}
		cli.Disconnect(100)
		return true
	})
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

// StartRedis launches a throwaway Redis server for the dispatch summary sink
// and returns its host:port address.
func StartRedis(ctx context.Context) (string, func(), error) {
	addr, cleanup, err := startContainer(ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379")
	if err != nil {
		return "", nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	waitCtx, cancel := context.WithTimeout(ctx, RedisReadyTimeout)
	defer cancel()
	if err := poll(waitCtx, "redis not ready", func() bool {
		return client.Ping(waitCtx).Err() == nil
	}); err != nil {
		cleanup()
		return "", nil, err
	}
	return addr, cleanup, nil
}
