package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// Tick is the wire form of a streamed quote. Timestamps are unix millis.
type Tick struct {
	Asset     string  `json:"asset"`
	Quote     string  `json:"quote,omitempty"`
	Venue     string  `json:"venue"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity,omitempty"`
	Volume24h float64 `json:"volume_24h,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

// Sample converts a tick, stamping it with now when the stream sent no time.
func (t Tick) Sample(now time.Time) types.PriceSample {
	at := now
	if t.Timestamp > 0 {
		at = time.UnixMilli(t.Timestamp)
	}
	return types.PriceSample{
		Asset:      strings.ToUpper(t.Asset),
		Quote:      strings.ToUpper(t.Quote),
		Venue:      t.Venue,
		Price:      t.Price,
		Liquidity:  t.Liquidity,
		Volume24h:  t.Volume24h,
		CapturedAt: at,
	}
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

// WSConfig holds tick stream configuration.
type WSConfig struct {
	URL                   string
	Assets                []string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	// Out receives decoded samples. Sends never block; a full channel drops.
	Out    chan<- types.PriceSample
	Logger *zap.Logger
}

// WSConnector streams price ticks from a websocket aggregator into the
// price cache's sample channel.
type WSConnector struct {
	config          WSConfig
	logger          *zap.Logger
	reconnector     *Reconnector
	out             chan<- types.PriceSample
	conn            *websocket.Conn
	mu              sync.RWMutex
	writeMu         sync.Mutex
	connected       atomic.Bool
	connectionStart atomic.Int64
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// NewWSConnector validates cfg and creates an unstarted connector.
func NewWSConnector(cfg WSConfig) (*WSConnector, error) {
	if cfg.URL == "" {
		return nil, errors.New("websocket URL is required")
	}
	if cfg.Out == nil {
		return nil, errors.New("output channel is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}

	return &WSConnector{
		config: cfg,
		logger: cfg.Logger,
		out:    cfg.Out,
		reconnector: NewReconnector(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
	}, nil
}

// Start dials, subscribes and launches the read, ping and reconnect loops.
// The initial dial must succeed; later drops are retried until ctx is done.
func (w *WSConnector) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("ws-connector-starting",
		zap.String("url", w.config.URL),
		zap.Strings("assets", w.config.Assets))

	err := w.connect(w.ctx)
	if err != nil {
		w.cancel()
		return fmt.Errorf("initial connection: %w", err)
	}

	w.wg.Add(3)
	go w.readLoop()
	go w.pingLoop()
	go w.reconnectLoop()

	return nil
}

// IsConnected reports whether the stream is currently up.
func (w *WSConnector) IsConnected() bool {
	return w.connected.Load()
}

func (w *WSConnector) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.config.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, w.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	err = w.subscribe(conn)
	if err != nil {
		conn.Close()
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.connectionStart.Store(time.Now().Unix())
	w.connected.Store(true)
	WSConnected.Set(1)

	w.logger.Info("ws-connected", zap.Int("assets", len(w.config.Assets)))
	return nil
}

func (w *WSConnector) subscribe(conn *websocket.Conn) error {
	if len(w.config.Assets) == 0 {
		return nil
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Assets: w.config.Assets})
	if err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}
	return nil
}

func (w *WSConnector) currentConn() *websocket.Conn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn
}

func (w *WSConnector) markDisconnected() {
	if !w.connected.Swap(false) {
		return
	}
	if start := w.connectionStart.Load(); start > 0 {
		WSConnectionDuration.Observe(time.Since(time.Unix(start, 0)).Seconds())
	}
	WSConnected.Set(0)
}

func (w *WSConnector) readLoop() {
	defer w.wg.Done()

	for {
		if w.ctx.Err() != nil {
			return
		}

		if !w.connected.Load() {
			// reconnectLoop owns re-dialing
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		conn := w.currentConn()
		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() == nil {
				w.logger.Warn("ws-read-error", zap.Error(err))
			}
			w.markDisconnected()
			continue
		}

		w.handle(message)
	}
}

// handle decodes one frame. Frames are either a tick array or a single tick;
// anything else is treated as a control message and ignored.
func (w *WSConnector) handle(message []byte) {
	trimmed := strings.TrimSpace(string(message))
	if trimmed == "" || trimmed == "[]" {
		return
	}

	var ticks []Tick
	if strings.HasPrefix(trimmed, "[") {
		err := json.Unmarshal(message, &ticks)
		if err != nil {
			w.logger.Debug("ws-unparseable-message", zap.Error(err), zap.Int("bytes", len(message)))
			TicksDroppedTotal.WithLabelValues("unparseable").Inc()
			return
		}
	} else {
		var tick Tick
		err := json.Unmarshal(message, &tick)
		if err != nil || tick.Asset == "" {
			w.logger.Debug("ws-control-message", zap.Int("bytes", len(message)))
			return
		}
		ticks = []Tick{tick}
	}

	now := time.Now()
	for i := range ticks {
		sample := ticks[i].Sample(now)
		TicksReceivedTotal.WithLabelValues(sample.Venue).Inc()

		select {
		case w.out <- sample:
		default:
			w.logger.Warn("sample-channel-full", zap.String("key", sample.Key()))
			TicksDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

func (w *WSConnector) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if !w.connected.Load() {
				continue
			}

			w.writeMu.Lock()
			err := w.currentConn().WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			w.writeMu.Unlock()
			if err != nil {
				w.logger.Warn("ws-ping-error", zap.Error(err))
			}
		}
	}
}

func (w *WSConnector) reconnectLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}

		if w.connected.Load() {
			continue
		}

		w.logger.Warn("ws-connection-lost-reconnecting")

		if old := w.currentConn(); old != nil {
			old.Close()
		}

		err := w.reconnector.Reconnect(w.ctx, w.connect)
		if err != nil {
			return
		}
	}
}

// Close stops all loops and closes the connection.
func (w *WSConnector) Close() error {
	w.logger.Info("closing-ws-connector")

	if w.cancel != nil {
		w.cancel()
	}

	if conn := w.currentConn(); conn != nil {
		conn.Close()
	}

	w.wg.Wait()
	w.markDisconnected()

	w.logger.Info("ws-connector-closed")
	return nil
}
