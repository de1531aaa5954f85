/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	applog "questeditor/internal/log"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	// DefaultReconnectDelay is the pause between connection attempts.
	DefaultReconnectDelay = 3 * time.Second

	sendQueue    = 64
	inboundQueue = 256
)

// Options configures a WSClient.
type Options struct {
	URL            string
	Token          string // sent as a bearer token when non-empty
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
}

// WSClient is a Channel over a websocket connection to the device service.
// Run keeps the connection up, reconnecting after a fixed delay.
type WSClient struct {
	opts Options
	log  *slog.Logger

	inbound chan Inbound

	mu        sync.Mutex
	out       chan []byte // nil while disconnected
	connected atomic.Bool
}

func NewWSClient(opts Options) *WSClient {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &WSClient{
		opts:    opts,
		log:     applog.WithComponent("channel"),
		inbound: make(chan Inbound, inboundQueue),
	}
}

func (c *WSClient) Inbound() <-chan Inbound { return c.inbound }

func (c *WSClient) Connected() bool { return c.connected.Load() }

// Send queues o for the writer. It fails with ErrUnavailable while
// disconnected or when the queue is full.
func (c *WSClient) Send(o Outbound) error {
	payload, err := o.Encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return ErrUnavailable
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return fmt.Errorf("send queue full: %w", ErrUnavailable)
	}
}

// Run dials and serves connections until ctx is cancelled.
func (c *WSClient) Run(ctx context.Context) error {
	l := applog.WithOperation(c.log, "run").With(slog.String("url", c.opts.URL))
	for {
		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			l.Warn("device service connection lost", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *WSClient) connectOnce(ctx context.Context) error {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	defer conn.Close()

	out := make(chan []byte, sendQueue)
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	c.connected.Store(true)
	c.deliver(ctx, Inbound{Kind: KindConnected})
	c.log.Info("device service connected", slog.String("url", c.opts.URL))

	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
		c.connected.Store(false)
		dctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.deliver(dctx, Inbound{Kind: KindDisconnected})
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx, conn) })
	g.Go(func() error { return c.writePump(gctx, conn, out) })
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *WSClient) readPump(ctx context.Context, conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		var in Inbound
		switch mt {
		case websocket.BinaryMessage:
			in = ParseBinary(data)
		case websocket.TextMessage:
			in, err = ParseText(data)
			if err != nil {
				c.log.Warn("inbound message dropped", slog.Any("err", err))
				continue
			}
		default:
			continue
		}
		if !c.deliver(ctx, in) {
			return ctx.Err()
		}
	}
}

func (c *WSClient) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte) error {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case payload := <-out:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// deliver hands in to the consumer. Frames are dropped rather than blocking
// the reader when the consumer falls behind.
func (c *WSClient) deliver(ctx context.Context, in Inbound) bool {
	if in.Kind == KindFrame {
		select {
		case c.inbound <- in:
		default:
		}
		return true
	}
	select {
	case c.inbound <- in:
		return true
	case <-ctx.Done():
		return false
	}
}
