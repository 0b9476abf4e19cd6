// Package client speaks the one-exchange line protocol to a running
// daemon on behalf of the CLI.
package client

import (
	"bufio"
	"fmt"
	"time"

	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/transport"
)

// DefaultDialTimeout bounds how long a client waits to reach the daemon.
const DefaultDialTimeout = 2 * time.Second

// HealthTimeout bounds a health probe end to end; a healthy daemon
// answers instantly because health never queues behind transcription
// work.
const HealthTimeout = 2 * time.Second

// Client dials the daemon endpoint once per exchange; the protocol is
// one request and one response per connection.
type Client struct {
	endpoint    transport.Endpoint
	dialTimeout time.Duration
}

// New creates a client for the given endpoint.
func New(endpoint transport.Endpoint) *Client {
	return &Client{endpoint: endpoint, dialTimeout: DefaultDialTimeout}
}

// Transcribe submits one absolute file path and blocks until the daemon
// answers. There is no read deadline: the transcript arrives whenever
// the queue gets to it.
func (c *Client) Transcribe(path string) (string, error) {
	line, err := c.exchange(path, 0)
	if err != nil {
		return "", err
	}
	return protocol.ParseTranscribeReply(line)
}

// Health probes daemon availability. The whole exchange is bounded by
// HealthTimeout so scripts can poll cheaply.
func (c *Client) Health() (protocol.Health, error) {
	line, err := c.exchange(protocol.HealthProbe, HealthTimeout)
	if err != nil {
		return "", err
	}
	return protocol.ParseHealthReply(line)
}

func (c *Client) exchange(request string, readTimeout time.Duration) (string, error) {
	conn, err := c.endpoint.Dial(c.dialTimeout)
	if err != nil {
		return "", fmt.Errorf("connect to daemon at %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	if err := protocol.WriteLine(conn, request); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	line, err := protocol.ReadLine(bufio.NewReaderSize(conn, 4096))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return line, nil
}
