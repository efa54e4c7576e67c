// Package transport adapts gorilla/websocket to the asynchronous, handler
// based connection contract the session core consumes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voxlink/internal/logging"
	"voxlink/internal/ports"
)

var (
	ErrNotOpen        = errors.New("websocket is not open")
	ErrSendBufferFull = errors.New("websocket send buffer is full")
)

const (
	defaultSendBuffer  = 64
	defaultCloseWait   = time.Second
	defaultDialTimeout = 10 * time.Second
)

// Config controls websocket dialing.
type Config struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	SendBuffer       int
}

// Dialer implements ports.Dialer over gorilla/websocket.
type Dialer struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewDialer(cfg Config, logger zerolog.Logger) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultDialTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	return &Dialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Dial returns immediately. The outcome is reported through handlers from
// the dial goroutine: OnOpen on success, OnClose with the dial error
// otherwise.
func (d *Dialer) Dial(ctx context.Context, url string, handlers ports.ConnHandlers) ports.Conn {
	c := &conn{
		state:    ports.ConnConnecting,
		handlers: handlers,
		send:     make(chan []byte, d.cfg.SendBuffer),
		done:     make(chan struct{}),
		logger:   d.logger.With().Str(logging.FieldURL, url).Logger(),
	}
	go c.dial(ctx, d.dialer, url, d.cfg.Header)
	return c
}

type conn struct {
	mu       sync.Mutex
	state    ports.ConnState
	handlers ports.ConnHandlers
	ws       *websocket.Conn

	send chan []byte
	done chan struct{}

	errMu sync.Mutex
	err   error

	finishOnce sync.Once
	logger     zerolog.Logger
}

func (c *conn) dial(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) {
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		c.setErr(fmt.Errorf("failed to connect to %s: %w", url, err))
		c.finish()
		return
	}

	c.mu.Lock()
	if c.state != ports.ConnConnecting {
		c.mu.Unlock()
		_ = ws.Close()
		c.finish()
		return
	}
	c.state = ports.ConnOpen
	c.ws = ws
	onOpen := c.handlers.OnOpen
	c.mu.Unlock()

	c.logger.Debug().Msg("websocket open")

	go c.writeLoop(ws)
	if onOpen != nil {
		onOpen()
	}
	c.readLoop(ws)
}

func (c *conn) State() ports.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendBinary queues payload for the writer goroutine and never blocks.
func (c *conn) SendBinary(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ports.ConnOpen {
		return ErrNotOpen
	}

	copied := append([]byte(nil), payload...)
	select {
	case c.send <- copied:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *conn) Detach() {
	c.mu.Lock()
	c.handlers = ports.ConnHandlers{}
	c.mu.Unlock()
}

// Close starts the closing handshake. It is safe to call in any state and
// more than once.
func (c *conn) Close() error {
	c.mu.Lock()
	state := c.state
	ws := c.ws
	if state == ports.ConnConnecting || state == ports.ConnOpen {
		c.state = ports.ConnClosing
	}
	c.mu.Unlock()

	if state != ports.ConnOpen || ws == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultCloseWait)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		_ = ws.Close()
		return nil
	}

	go func() {
		select {
		case <-c.done:
		case <-time.After(defaultCloseWait):
			_ = ws.Close()
		}
	}()
	return nil
}

func (c *conn) finish() {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.state = ports.ConnClosed
		ws := c.ws
		onClose := c.handlers.OnClose
		c.mu.Unlock()

		close(c.done)
		if ws != nil {
			_ = ws.Close()
		}

		err := c.waitErr()
		if err != nil {
			c.logger.Debug().Err(err).Msg("websocket closed")
		} else {
			c.logger.Debug().Msg("websocket closed")
		}
		if onClose != nil {
			onClose(err)
		}
	})
}

func (c *conn) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *conn) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *conn) writeLoop(ws *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		case chunk := <-c.send:
			if err := ws.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				c.setErr(fmt.Errorf("failed to send audio: %w", err))
				_ = ws.Close()
				return
			}
		}
	}
}

func (c *conn) readLoop(ws *websocket.Conn) {
	defer c.finish()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if c.State() == ports.ConnClosing {
				return
			}
			c.setErr(fmt.Errorf("failed to read server message: %w", err))
			return
		}

		c.mu.Lock()
		onMessage := c.handlers.OnMessage
		c.mu.Unlock()
		if onMessage != nil {
			onMessage(payload)
		}
	}
}
