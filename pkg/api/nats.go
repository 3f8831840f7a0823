package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSResponder answers evaluation requests published on NATS. Requests
// and replies carry the same JSON as the HTTP endpoints; failures reply
// with an ErrorResponse.
type NATSResponder struct {
	nc       *nats.Conn
	handlers *Handlers
	prefix   string
	timeout  time.Duration
	subs     []*nats.Subscription
}

// NewNATSResponder creates a responder for <prefix>.evaluate and
// <prefix>.cube. timeout bounds each request including its wait for the
// engine.
func NewNATSResponder(nc *nats.Conn, h *Handlers, prefix string, timeout time.Duration) *NATSResponder {
	return &NATSResponder{nc: nc, handlers: h, prefix: prefix, timeout: timeout}
}

// Start subscribes to both subjects.
func (r *NATSResponder) Start() error {
	for subject, reply := range map[string]func(context.Context, []byte) []byte{
		r.prefix + ".evaluate": r.replyEvaluate,
		r.prefix + ".cube":     r.replyCube,
	} {
		sub, err := r.nc.Subscribe(subject, func(m *nats.Msg) {
			// the engine serializes requests; don't block the subscription
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
				defer cancel()
				if err := m.Respond(reply(ctx, m.Data)); err != nil {
					r.handlers.logger.Warn().Err(err).Str("subject", m.Subject).Msg("nats reply failed")
				}
			}()
		})
		if err != nil {
			r.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}
	if err := r.nc.Flush(); err != nil {
		return err
	}
	r.handlers.logger.Info().Str("prefix", r.prefix).Msg("listening on nats")
	return nil
}

// Stop drains the subscriptions.
func (r *NATSResponder) Stop() {
	for _, sub := range r.subs {
		_ = sub.Drain()
	}
	r.subs = nil
}

func (r *NATSResponder) replyEvaluate(ctx context.Context, data []byte) []byte {
	var req EvaluateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return marshalReply(ErrorResponse{Error: "invalid JSON", Code: "INVALID_JSON"})
	}
	resp, err := r.handlers.evaluate(ctx, &req)
	if err != nil {
		_, body := errorStatus(err)
		return marshalReply(body)
	}
	return marshalReply(resp)
}

func (r *NATSResponder) replyCube(ctx context.Context, data []byte) []byte {
	var req CubeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return marshalReply(ErrorResponse{Error: "invalid JSON", Code: "INVALID_JSON"})
	}
	resp, err := r.handlers.cube(ctx, &req)
	if err != nil {
		_, body := errorStatus(err)
		return marshalReply(body)
	}
	return marshalReply(resp)
}

func marshalReply(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Should never happen: every reply type is plain data.
		return []byte(`{"error":"internal error","code":"INTERNAL"}`)
	}
	return data
}
