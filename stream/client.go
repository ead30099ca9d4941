// Package stream consumes the depth producer's WebSocket feed. A single
// read goroutine decodes and unprojects each binary message, then publishes
// the resulting point set on a depth-1 channel with a latest-wins drop
// policy, keeping the render loop free of network work.
package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/core"
	"github.com/livedepth/livedepth/depth"
)

// Stats are cumulative ingestion counters, safe to read from any
// goroutine. Dropped counts point sets discarded because the consumer was
// behind; Malformed counts frames rejected by the decoder.
type Stats struct {
	Frames    atomic.Uint64
	Dropped   atomic.Uint64
	Malformed atomic.Uint64
	Bytes     atomic.Uint64
}

// Client ingests frames from one producer URL, reconnecting with backoff
// until the context is cancelled.
type Client struct {
	cfg config.Stream

	out       chan *depth.PointSet
	stats     Stats
	connected atomic.Bool

	// scratch point set recycled across frames of the same resolution;
	// only touched by the read goroutine before publication
	scratch *depth.PointSet
}

// NewClient prepares a client; Run starts it.
func NewClient(cfg config.Stream) *Client {
	return &Client{
		cfg: cfg,
		out: make(chan *depth.PointSet, 1),
	}
}

// PointSets is the publication channel. Closed when Run returns.
func (c *Client) PointSets() <-chan *depth.PointSet {
	return c.out
}

// Connected reports whether a producer connection is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// StatsSnapshot returns the current counters.
func (c *Client) StatsSnapshot() (frames, dropped, malformed, bytes uint64) {
	return c.stats.Frames.Load(), c.stats.Dropped.Load(), c.stats.Malformed.Load(), c.stats.Bytes.Load()
}

// Run dials, reads until failure, and redials with exponential backoff.
// Returns when ctx is cancelled; the publication channel is closed on
// return so the consumer can freeze its last state.
func (c *Client) Run(ctx context.Context) {
	defer close(c.out)

	backoff := c.cfg.ReconnectMinSec
	for {
		if err := c.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			core.LogWarn("stream: connection lost: %v (retry in %.1fs)", err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(backoff * float64(time.Second))):
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMaxSec {
			backoff = c.cfg.ReconnectMaxSec
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(c.cfg.HandshakeTimeout * float64(time.Second)),
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	if c.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(c.cfg.ReadLimitBytes)
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	core.LogInfo("stream: connected to %s", c.cfg.URL)

	// unblock ReadMessage on cancellation
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msgType, buf, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.stats.Bytes.Add(uint64(len(buf)))
		c.handleMessage(buf)
	}
}

func (c *Client) handleMessage(buf []byte) {
	frame, err := depth.Decode(buf)
	if err != nil {
		if errors.Is(err, depth.ErrHelloFrame) {
			core.LogDebug("stream: producer hello")
			return
		}
		// frame dropped, previous render state retained
		c.stats.Malformed.Add(1)
		core.LogWarn("stream: %v", err)
		return
	}

	// Reuse the scratch allocation only while the channel is empty;
	// once published, the set belongs to the consumer.
	ps := depth.Unproject(frame, c.scratch)
	c.scratch = nil
	c.stats.Frames.Add(1)

	select {
	case c.out <- ps:
	default:
		// consumer behind: replace the queued set with the newest
		select {
		case old := <-c.out:
			c.scratch = old
			c.stats.Dropped.Add(1)
		default:
		}
		select {
		case c.out <- ps:
		default:
			c.stats.Dropped.Add(1)
		}
	}
}
