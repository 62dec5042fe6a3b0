package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"lireddit/server/internal/config"
	"lireddit/server/internal/orchestrator"
)

const natsProbeName = "nats"

// PostsStream holds every post.* domain event.
const PostsStream = "POSTS"

// streamSpec describes a single JetStream stream to provision.
type streamSpec struct {
	name      string
	subjects  []string
	retention nats.RetentionPolicy
	maxAge    time.Duration
}

var requiredStreams = []streamSpec{
	{
		name:      PostsStream,
		subjects:  []string{"post.>"},
		retention: nats.LimitsPolicy,
		maxAge:    7 * 24 * time.Hour,
	},
}

// jsContext is the subset of nats.JetStreamContext used in stream management
// and publishing. Defining an interface here allows test doubles to be
// injected without a live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient provisions the JetStream streams, probes the server and
// publishes domain events.
type NATSClient struct {
	url   string
	cb    *gobreaker.CircuitBreaker
	newJS func(url string) (jsContext, func(), error)

	mu      sync.Mutex
	pubJS   jsContext
	pubDone func()
}

// NewNATSClient constructs a NATSClient. No connection is made at construction
// time; connections are opened lazily.
func NewNATSClient(cfg config.NATSConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:   cfg.URL,
		cb:    cb,
		newJS: realNewJS,
	}
}

// ProvisionStreams connects to NATS JetStream and creates or updates the
// required streams. It is idempotent: existing streams are updated rather than
// errored. The entire operation is wrapped in the circuit breaker.
func (c *NATSClient) ProvisionStreams(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		for _, spec := range requiredStreams {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := provisionStream(js, spec); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Probe verifies NATS connectivity. A missing stream is not a failure.
func (c *NATSClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		_, infoErr := js.StreamInfo(requiredStreams[0].name, nats.Context(ctx))
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
		}
		return nil, nil
	})

	return probeResult(natsProbeName, start, err)
}

// Publish sends payload as JSON on subject and waits for the JetStream ack.
// The publishing connection is opened on first use and reused; a failed
// publish drops it so the next call reconnects.
func (c *NATSClient) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", subject, err)
	}

	js, err := c.publisher()
	if err != nil {
		return err
	}
	if _, err := js.Publish(subject, data, nats.Context(ctx)); err != nil {
		c.resetPublisher()
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

// Close drops the publishing connection.
func (c *NATSClient) Close() {
	c.resetPublisher()
}

func (c *NATSClient) publisher() (jsContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubJS != nil {
		return c.pubJS, nil
	}
	js, done, err := c.newJS(c.url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	c.pubJS, c.pubDone = js, done
	return js, nil
}

func (c *NATSClient) resetPublisher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubDone != nil {
		c.pubDone()
	}
	c.pubJS, c.pubDone = nil, nil
}

// provisionStream creates the stream if it does not exist, or updates it if it
// does. nats.ErrStreamNotFound signals "create"; any other error is returned.
func provisionStream(js jsContext, spec streamSpec) error {
	cfg := &nats.StreamConfig{
		Name:      spec.name,
		Subjects:  spec.subjects,
		Retention: spec.retention,
		MaxAge:    spec.maxAge,
	}

	_, err := js.StreamInfo(spec.name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(cfg); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", spec.name, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", spec.name, err)
	default:
		if _, updErr := js.UpdateStream(cfg); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", spec.name, updErr)
		}
	}
	return nil
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus a
// cleanup function that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url, nats.Name("lireddit"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
