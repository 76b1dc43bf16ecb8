package microsim

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/MDylan95/sma-trafic/internal/config"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// StateSource supplies the simulation snapshots a Publisher mirrors
// each tick. *world.World satisfies this directly.
type StateSource interface {
	SyncVehicles() []world.VehicleSync
	SyncIntersections() []world.IntersectionSync
	SyncBlockedEdges() [][2]string
}

// Publisher connects to an MQTT broker and, once per tick, publishes
// the current vehicle/intersection/blockage snapshot plus a step
// request. It implements scheduler.MicrosimHook via Step.
type Publisher struct {
	cfg    config.MicrosimConfig
	source StateSource
	logger *slog.Logger

	mu      sync.Mutex
	cm      *autopaho.ConnectionManager
	limiter *ackRateLimiter
}

// New creates a Publisher but does not connect. Call Start to begin
// the connection. A nil logger is replaced with slog.Default.
func New(cfg config.MicrosimConfig, source StateSource, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, source: source, logger: logger}
}

// Start connects to the configured broker. It blocks until ctx is
// cancelled; callers typically run it in its own goroutine.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse microsim broker URL: %w", err)
	}

	availTopic := p.topic("availability")
	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("microsim connected to broker", "broker", p.cfg.BrokerURL)
			pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			p.publish(pubCtx, cm, "availability", []byte("online"), true)
			p.subscribeAck(pubCtx, cm)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("microsim connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("microsim connect: %w", err)
	}

	p.mu.Lock()
	p.cm = cm
	p.limiter = newAckRateLimiter(50, time.Second, p.logger)
	p.mu.Unlock()
	go p.limiter.start(ctx)

	ackTopic := p.topic("step/ack")
	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		if pr.Packet.Topic != ackTopic {
			return true, nil
		}
		if !p.limiter.allow() {
			return true, nil
		}
		p.logger.Debug("microsim step acknowledged", "payload_size", len(pr.Packet.Payload))
		return true, nil
	})

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("microsim initial connection timed out, will retry in background", "error", err)
	}

	<-ctx.Done()
	return nil
}

// Stop disconnects, publishing a final offline availability message.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	cm := p.cm
	p.mu.Unlock()
	if cm == nil {
		return nil
	}
	p.publish(ctx, cm, "availability", []byte("offline"), true)
	return cm.Disconnect(ctx)
}

// Step publishes the current simulation snapshot and a step request.
// Satisfies scheduler.MicrosimHook. An unconnected Publisher returns
// an error the scheduler logs and ignores — per spec.md, the
// core simulation never depends on this succeeding.
func (p *Publisher) Step(tick int, simTime float64) error {
	p.mu.Lock()
	cm := p.cm
	p.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("microsim publisher not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if payload, err := json.Marshal(p.source.SyncVehicles()); err == nil {
		p.publish(ctx, cm, "vehicles", payload, true)
	}
	if payload, err := json.Marshal(p.source.SyncIntersections()); err == nil {
		p.publish(ctx, cm, "intersections", payload, true)
	}
	if payload, err := json.Marshal(p.source.SyncBlockedEdges()); err == nil {
		p.publish(ctx, cm, "blockages", payload, true)
	}

	step := struct {
		Tick    int     `json:"tick"`
		SimTime float64 `json:"sim_time"`
	}{tick, simTime}
	payload, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("marshal step request: %w", err)
	}
	p.publish(ctx, cm, "step", payload, false)
	return nil
}

func (p *Publisher) topic(suffix string) string {
	return p.cfg.TopicRoot + "/" + suffix
}

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, suffix string, payload []byte, retain bool) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.topic(suffix),
		Payload: payload,
		QoS:     0,
		Retain:  retain,
	}); err != nil {
		p.logger.Debug("microsim publish failed", "topic", suffix, "error", err)
	}
}

// subscribeAck (re-)issues the step-ack subscription; called on every
// (re-)connect since MQTT brokers don't remember subscriptions across
// a session loss. The inbound message handler itself is registered
// once in Start via AddOnPublishReceived.
func (p *Publisher) subscribeAck(ctx context.Context, cm *autopaho.ConnectionManager) {
	ackTopic := p.topic("step/ack")
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: ackTopic, QoS: 0}},
	}); err != nil {
		p.logger.Warn("microsim subscribe failed", "topic", ackTopic, "error", err)
	}
}
