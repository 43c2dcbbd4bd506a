// Package statsd emits DogStatsD-style metrics over UDP.
package statsd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// Sink is the metric surface used by the dispatch pipeline.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// DefaultMaxPacketSize keeps datagrams under a typical 1500 byte MTU.
const DefaultMaxPacketSize = 1432

// Config describes how to connect to a StatsD-compatible agent.
type Config struct {
	Enabled bool
	Address string
	Prefix  string
	// GlobalTags are attached to every line; per-call tags win on conflict.
	GlobalTags map[string]string
	// FlushInterval batches lines into one datagram. Zero sends each line as written.
	FlushInterval time.Duration
	// MaxPacketSize caps a batched datagram. Defaults to DefaultMaxPacketSize.
	MaxPacketSize int
	Logger        *slog.Logger
}

// Client is safe for concurrent use. A nil *Client drops everything.
type Client struct {
	format    lineFormatter
	maxPacket int
	logger    *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	buf  bytes.Buffer

	stop chan struct{}
	done chan struct{}
}

var _ Sink = (*Client)(nil)

// NewClient dials the agent unless the config is disabled or has no address.
func NewClient(cfg Config) (*Client, error) {
	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return newClient(cfg, nil), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	return newClient(cfg, conn), nil
}

func newClient(cfg Config, conn net.Conn) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPacket := cfg.MaxPacketSize
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacketSize
	}
	c := &Client{
		format:    newLineFormatter(cfg.Prefix, cfg.GlobalTags),
		maxPacket: maxPacket,
		logger:    logger.With("component", "statsd"),
		conn:      conn,
	}
	if conn != nil && cfg.FlushInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.flushLoop(cfg.FlushInterval)
	}
	return c
}

// Enabled reports whether the client has a live connection.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.enqueue(c.format.count(name, value, tags))
}

// Gauge records a point-in-time value.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	if c == nil {
		return
	}
	c.enqueue(c.format.gauge(name, value, tags))
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	c.enqueue(c.format.timing(name, value, tags))
}

// Flush sends any buffered lines.
func (c *Client) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Close flushes pending lines and releases the connection. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
		<-c.done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.flushLocked()
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) enqueue(line string) {
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if c.stop == nil {
		c.send([]byte(line))
		return
	}
	if c.buf.Len() > 0 && c.buf.Len()+1+len(line) > c.maxPacket {
		c.flushLocked()
	}
	if c.buf.Len() > 0 {
		c.buf.WriteByte('\n')
	}
	c.buf.WriteString(line)
}

func (c *Client) flushLocked() {
	if c.buf.Len() == 0 || c.conn == nil {
		return
	}
	c.send(c.buf.Bytes())
	c.buf.Reset()
}

func (c *Client) send(p []byte) {
	if _, err := c.conn.Write(p); err != nil {
		c.logger.Debug("statsd write failed", "error", err)
	}
}

func (c *Client) flushLoop(every time.Duration) {
	defer close(c.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.Flush()
		}
	}
}
