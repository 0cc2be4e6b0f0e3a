package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/r3labs/sse/v2"
	backoffv1 "gopkg.in/cenkalti/backoff.v1"
)

var (
	ErrCancelled   = errors.New("rtdb: stream cancelled by server")
	ErrAuthRevoked = errors.New("rtdb: stream auth revoked")
	ErrStreamEnded = errors.New("rtdb: stream closed")
)

const maxEventSize = 1 << 20

type eventPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Subscribe streams path until ctx is cancelled, reconnecting with
// exponential backoff. fn receives the full current value at path as JSON
// after every change; a deleted value arrives as null. It returns ctx.Err()
// on cancellation.
func (c *Client) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0

	op := func() error {
		delivered, err := c.stream(ctx, path, fn)
		if errors.Is(err, ErrNoBaseURL) {
			return backoff.Permanent(err)
		}
		// a session that delivered data starts the next retry from scratch
		if delivered {
			b.Reset()
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.log.Warn().Err(err).Str("path", path).Dur("retryIn", next).Msg("Stream interrupted")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Stream runs a single streaming session and returns when it ends.
func (c *Client) Stream(ctx context.Context, path string, fn func(json.RawMessage)) error {
	_, err := c.stream(ctx, path, fn)
	return err
}

func (c *Client) newStream(u, path string) *sse.Client {
	sc := sse.NewClient(u, sse.ClientMaxBufferSize(maxEventSize))
	sc.Connection = c.streamClient
	// reconnects are driven by Subscribe
	sc.ReconnectStrategy = &backoffv1.StopBackOff{}
	sc.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return checkStatus(resp)
		}
		c.log.Debug().Str("path", path).Msg("Stream connected")
		return nil
	}
	return sc
}

func (c *Client) stream(ctx context.Context, path string, fn func(json.RawMessage)) (bool, error) {
	u, err := c.endpoint(path)
	if err != nil {
		return false, err
	}

	session, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		t         tree
		delivered bool
		failed    error
	)
	err = c.newStream(u, path).SubscribeRawWithContext(session, func(ev *sse.Event) {
		if failed != nil {
			return
		}
		ok, err := c.handleEvent(&t, string(ev.Event), ev.Data, fn)
		delivered = delivered || ok
		if err != nil {
			failed = err
			cancel()
		}
	})

	switch {
	case failed != nil:
		return delivered, failed
	case err != nil:
		return delivered, fmt.Errorf("rtdb: stream %s: %w", path, err)
	default:
		return delivered, ErrStreamEnded
	}
}

// handleEvent applies one server event to t and reports whether fn was
// called.
func (c *Client) handleEvent(t *tree, name string, data []byte, fn func(json.RawMessage)) (bool, error) {
	switch name {
	case "put", "patch":
		var p eventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return false, fmt.Errorf("rtdb: bad %s event: %w", name, err)
		}
		if err := t.apply(name, p.Path, p.Data); err != nil {
			return false, err
		}
		value, err := t.value()
		if err != nil {
			return false, err
		}
		fn(value)
		return true, nil
	case "keep-alive":
	case "cancel":
		return false, ErrCancelled
	case "auth_revoked":
		return false, ErrAuthRevoked
	default:
		c.log.Trace().Str("event", name).Msg("Ignoring stream event")
	}
	return false, nil
}
