// Package trace assigns request ids and counts requests in flight.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"
)

const Header = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// Inbound ids are accepted only when they look like ids, so log lines cannot
// be forged through the header.
var validID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// GenerateRequestID creates a random request id.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// RequestID reuses a well-formed inbound X-Request-ID or generates one.
func RequestID(r *http.Request) string {
	if id := r.Header.Get(Header); validID.MatchString(id) {
		return id
	}
	return GenerateRequestID()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type Metrics struct {
	TotalRequests int64
	InFlight      int64
}

// Counter tracks request totals for readiness and debugging output.
type Counter struct {
	total    atomic.Int64
	inFlight atomic.Int64
}

// Begin marks a request as started; call the returned func when it ends.
func (c *Counter) Begin() func() {
	c.total.Add(1)
	c.inFlight.Add(1)
	return func() { c.inFlight.Add(-1) }
}

func (c *Counter) GetMetrics() Metrics {
	return Metrics{
		TotalRequests: c.total.Load(),
		InFlight:      c.inFlight.Load(),
	}
}
