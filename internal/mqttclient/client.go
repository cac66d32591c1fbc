// Package mqttclient implements the resilient MQTT transport described in
// spec.md §4.1: scheme-aware connect/reconnect, TLS, keepalive heartbeat and
// a bounded-concurrency publish queue, built on paho.mqtt.golang the way the
// teacher's internal/mqtt package wraps it, generalized to the full option
// surface spec.md §6 enumerates.
package mqttclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Handler is the callback signature delivered for a topic subscription.
type Handler func(topic string, payload []byte)

// State is the connection lifecycle state machine of spec.md §4.1.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateEnded:
		return "ended"
	default:
		return "disconnected"
	}
}

// EventFunc receives lifecycle events: mqtt_connect, mqtt_reconnect,
// mqtt_disconnect, mqtt_close, mqtt_end, mqtt_offline, mqtt_error,
// mqtt_subscribed, mqtt_published.
type EventFunc func(event string, detail error)

// TLSMaterial carries the optional CA/cert/key bundle for mqtts/wss schemes.
type TLSMaterial struct {
	CA                 []byte
	Cert               []byte
	Key                []byte
	RejectUnauthorized bool
}

// Options configures New. Zero-value fields fall back to the defaults spec.md
// §4.1 names: keepalive 60s, reconnect period 5s, connect timeout 60s, clean
// session, QoS 2, generated clientId.
type Options struct {
	Host       string // includes scheme, e.g. "mqtt://broker:1883" or "mqtt+unix:///var/run/mq.sock"
	Port       int
	TopicPrefix string
	Username   string
	Password   string
	ClientID   string
	ProtocolVersion uint // 3, 4 or 5; 0 defaults to 4

	TLS *TLSMaterial

	Keepalive       time.Duration
	ConnectTimeout  time.Duration
	ReconnectPeriod time.Duration

	OnEvent EventFunc
}

// Client wraps a paho client with the queued-publish dispatcher, keepalive
// heartbeat and topic-dispatch subscription the spec requires.
type Client struct {
	opts   Options
	cli    paho.Client
	clientID string

	mu    sync.Mutex
	state State

	subscribedOnce bool
	handlers       map[string]Handler

	queueMu    sync.Mutex
	queue      []queuedPublish
	queueTimer *time.Timer
	queueStop  chan struct{}

	keepaliveStop chan struct{}
	keepaliveWG   sync.WaitGroup

	inflight int64
}

type queuedPublish struct {
	topic   string
	payload []byte
	retain  bool
}

const (
	defaultKeepalive       = 60 * time.Second
	defaultConnectTimeout  = 60 * time.Second
	defaultReconnectPeriod = 5 * time.Second
	defaultQoS             = 2
	queueTickInterval      = 50 * time.Millisecond
)

// New builds (but does not connect) a Client from opts, applying spec.md
// §4.1's scheme handling and defaults.
func New(opts Options) (*Client, error) {
	if opts.Keepalive <= 0 {
		opts.Keepalive = defaultKeepalive
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ReconnectPeriod <= 0 {
		opts.ReconnectPeriod = defaultReconnectPeriod
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "zigbee2mqtt"
	}

	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = generateClientID(opts.TopicPrefix)
	}

	c := &Client{
		opts:     opts,
		clientID: clientID,
		handlers: map[string]Handler{},
	}

	brokerURL, scheme, err := resolveBrokerURL(opts)
	if err != nil {
		return nil, err
	}

	pahoOpts := paho.NewClientOptions()
	pahoOpts.AddBroker(brokerURL)
	pahoOpts.SetClientID(clientID)
	pahoOpts.SetCleanSession(true)
	pahoOpts.SetConnectTimeout(opts.ConnectTimeout)
	pahoOpts.SetKeepAlive(opts.Keepalive)
	pahoOpts.SetAutoReconnect(true)
	pahoOpts.SetMaxReconnectInterval(opts.ReconnectPeriod)
	pahoOpts.SetOrderMatters(false)
	if opts.ProtocolVersion > 0 {
		pahoOpts.SetProtocolVersion(opts.ProtocolVersion)
	}

	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		pahoOpts.SetPassword(opts.Password)
	}

	switch scheme {
	case "mqtt", "ws", "mqtt+unix":
		if opts.TLS != nil {
			slog.Warn("mqtt TLS material supplied for plaintext scheme, ignoring", "scheme", scheme)
		}
	case "mqtts", "wss":
		tlsConfig, err := buildTLSConfig(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("mqtt tls config: %w", err)
		}
		pahoOpts.SetTLSConfig(tlsConfig)
	default:
		slog.Warn("unsupported protocol scheme", "scheme", scheme)
	}

	pahoOpts.SetOnConnectHandler(c.handleConnect)
	pahoOpts.SetConnectionLostHandler(c.handleConnectionLost)
	pahoOpts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.setState(StateReconnecting)
		c.emit("mqtt_reconnect", nil)
	})

	c.cli = paho.NewClient(pahoOpts)
	return c, nil
}

func generateClientID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(hex) > 16 {
		hex = hex[:16]
	}
	return prefix + "_" + hex
}

func resolveBrokerURL(opts Options) (brokerURL string, scheme string, err error) {
	raw := opts.Host
	if !strings.Contains(raw, "://") {
		raw = "mqtt://" + raw
	}
	u, perr := url.Parse(raw)
	if perr != nil {
		return "", "", fmt.Errorf("invalid mqtt host %q: %w", opts.Host, perr)
	}
	scheme = strings.ToLower(u.Scheme)

	switch scheme {
	case "mqtt+unix":
		return fmt.Sprintf("unix://%s", u.Path), scheme, nil
	case "mqtt", "ws":
		host := u.Host
		if opts.Port > 0 && u.Port() == "" {
			host = fmt.Sprintf("%s:%d", host, opts.Port)
		}
		proto := "tcp"
		if scheme == "ws" {
			proto = "ws"
		}
		return fmt.Sprintf("%s://%s", proto, host), scheme, nil
	case "mqtts", "wss":
		host := u.Host
		if opts.Port > 0 && u.Port() == "" {
			host = fmt.Sprintf("%s:%d", host, opts.Port)
		}
		proto := "ssl"
		if scheme == "wss" {
			proto = "wss"
		}
		return fmt.Sprintf("%s://%s", proto, host), scheme, nil
	default:
		host := u.Host
		if opts.Port > 0 && u.Port() == "" {
			host = fmt.Sprintf("%s:%d", host, opts.Port)
		}
		return fmt.Sprintf("tcp://%s", host), scheme, nil
	}
}

func buildTLSConfig(material *TLSMaterial) (*tls.Config, error) {
	conf := &tls.Config{}
	if material == nil {
		slog.Warn("mqtts/wss scheme without CA material, defaulting to rejectUnauthorized=true")
		conf.InsecureSkipVerify = false
		return conf, nil
	}
	if len(material.CA) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(material.CA) {
			return nil, fmt.Errorf("failed to parse CA material")
		}
		conf.RootCAs = pool
	} else {
		slog.Warn("mqtts/wss scheme without CA material, defaulting to rejectUnauthorized=true")
	}
	conf.InsecureSkipVerify = !material.RejectUnauthorized && len(material.CA) == 0
	if len(material.Cert) > 0 && len(material.Key) > 0 {
		cert, err := tls.X509KeyPair(material.Cert, material.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load mutual TLS keypair: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	return conf, nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State reports the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) emit(event string, err error) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(event, err)
	}
}

// ClientID reports the (possibly generated) MQTT client id in use.
func (c *Client) ClientID() string { return c.clientID }

func (c *Client) handleConnect(pc paho.Client) {
	c.setState(StateConnected)
	c.emit("mqtt_connect", nil)
	slog.Info("mqtt connected", "client_id", c.clientID)

	c.mu.Lock()
	first := !c.subscribedOnce
	c.subscribedOnce = true
	handlers := make(map[string]Handler, len(c.handlers))
	for t, h := range c.handlers {
		handlers[t] = h
	}
	c.mu.Unlock()

	if first {
		topic := c.opts.TopicPrefix + "/#"
		if err := c.subscribeRaw(topic, c.dispatch); err != nil {
			slog.Error("mqtt initial subscribe failed", "topic", topic, "error", err)
			c.emit("mqtt_error", err)
		} else {
			c.emit("mqtt_subscribed", nil)
		}
		c.startKeepalive()
	}
	// Apply (first connect) or re-apply (reconnect) the handler-specific
	// subscriptions registered via Subscribe, including those registered
	// before the client was connected.
	for topic := range handlers {
		_ = c.subscribeRaw(topic, c.dispatch)
	}
}

func (c *Client) handleConnectionLost(pc paho.Client, err error) {
	c.setState(StateDisconnected)
	slog.Warn("mqtt connection lost", "error", err)
	c.emit("mqtt_offline", err)
	c.emit("mqtt_disconnect", err)
}

func (c *Client) dispatch(_ paho.Client, m paho.Message) {
	c.mu.Lock()
	handler, ok := c.handlers[m.Topic()]
	c.mu.Unlock()
	if ok {
		handler(m.Topic(), m.Payload())
		return
	}
	c.mu.Lock()
	for topic, h := range c.handlers {
		if topicMatches(topic, m.Topic()) {
			handler = h
			ok = true
			break
		}
	}
	c.mu.Unlock()
	if ok {
		handler(m.Topic(), m.Payload())
	}
}

// topicMatches implements MQTT wildcard matching for '+' and '#' segments.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

// Subscribe registers handler for topic (which may contain + / # wildcards).
// The underlying MQTT subscription to "<prefix>/#" happens once per session
// on first connect per spec.md §4.1; Subscribe only needs to register
// additional out-of-prefix topics (e.g. the heartbeat ack channel).
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.handlers[topic] = handler
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return nil
	}
	if err := c.subscribeRaw(topic, c.dispatch); err != nil {
		return err
	}
	c.emit("mqtt_subscribed", nil)
	return nil
}

func (c *Client) subscribeRaw(topic string, cb paho.MessageHandler) error {
	token := c.cli.Subscribe(topic, defaultQoS, cb)
	token.Wait()
	return token.Error()
}

// Unsubscribe removes topic's handler.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.handlers, topic)
	c.mu.Unlock()
	token := c.cli.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Connect blocks until the initial connection attempt completes.
func (c *Client) Connect() error {
	c.setState(StateConnecting)
	token := c.cli.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		c.emit("mqtt_error", err)
		return err
	}
	return nil
}

// Publish submits payload immediately (never queued). Never returns an error
// to a caller that cannot act on it without violating spec.md §7's
// propagation policy — callers may still inspect the error for logging.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publishNow(topic, payload, false)
}

// PublishRetained is Publish with the MQTT retain flag set.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publishNow(topic, payload, true)
}

func (c *Client) publishNow(topic string, payload []byte, retain bool) error {
	token := c.cli.Publish(topic, defaultQoS, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		slog.Error("mqtt publish failed", "topic", topic, "error", err)
		c.emit("mqtt_error", err)
		return err
	}
	c.emit("mqtt_published", nil)
	return nil
}

// PublishQueued enqueues payload for FIFO delivery by the 50ms dispatcher
// tick (spec.md §4.1 Queued publish).
func (c *Client) PublishQueued(topic string, payload []byte) {
	c.queueMu.Lock()
	c.queue = append(c.queue, queuedPublish{topic: topic, payload: payload})
	needStart := c.queueTimer == nil
	c.queueMu.Unlock()
	if needStart {
		c.startQueueDispatcher()
	}
}

func (c *Client) startQueueDispatcher() {
	c.queueMu.Lock()
	if c.queueTimer != nil {
		c.queueMu.Unlock()
		return
	}
	c.queueTimer = time.AfterFunc(queueTickInterval, c.drainOneTick)
	c.queueMu.Unlock()
}

func (c *Client) drainOneTick() {
	c.queueMu.Lock()
	var next *queuedPublish
	if len(c.queue) > 0 {
		entry := c.queue[0]
		c.queue = c.queue[1:]
		next = &entry
	}
	empty := len(c.queue) == 0
	if empty {
		c.queueTimer = nil
	}
	c.queueMu.Unlock()

	if next != nil {
		_ = c.publishNow(next.topic, next.payload, next.retain)
	}
	if !empty {
		c.queueMu.Lock()
		c.queueTimer = time.AfterFunc(queueTickInterval, c.drainOneTick)
		c.queueMu.Unlock()
	}
}

// QueueLen reports the number of entries still pending in the publish queue.
func (c *Client) QueueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

func (c *Client) startKeepalive() {
	c.mu.Lock()
	if c.keepaliveStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.keepaliveStop = stop
	c.mu.Unlock()

	c.keepaliveWG.Add(1)
	go func() {
		defer c.keepaliveWG.Done()
		ticker := time.NewTicker(c.opts.Keepalive)
		defer ticker.Stop()
		topic := fmt.Sprintf("clients/%s/heartbeat", c.clientID)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.publishNow(topic, []byte("alive"), false); err != nil {
					slog.Debug("heartbeat publish failed", "error", err)
				}
			}
		}
	}()
}

// Shutdown gracefully ends the client: stops keepalive and queue timers,
// drops pending queued publishes, and disconnects; it does not unsubscribe.
// Safe to call when Connect was never called.
func (c *Client) Shutdown() {
	c.mu.Lock()
	stop := c.keepaliveStop
	c.keepaliveStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		c.keepaliveWG.Wait()
	}

	c.queueMu.Lock()
	if c.queueTimer != nil {
		c.queueTimer.Stop()
		c.queueTimer = nil
	}
	c.queue = nil
	c.queueMu.Unlock()

	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
	c.setState(StateEnded)
	c.emit("mqtt_end", nil)
}
