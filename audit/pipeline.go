// Package audit records one structured log line, and optionally one durable
// Record, per handled request.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	"github.com/PaulFidika/meterkit/reqid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pipeline begins and finalizes audit scopes. It is safe for concurrent use.
type Pipeline struct {
	sink    Sink
	log     logrus.FieldLogger
	rules   []Rule
	persist bool
	async   bool
	now     func() time.Time
	pending sync.WaitGroup

	writeTimeout time.Duration
}

// DefaultWriteTimeout bounds a single sink write.
const DefaultWriteTimeout = 5 * time.Second

type Option func(*Pipeline)

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithPersist enables writing Records to the sink. Off by default.
func WithPersist(enabled bool) Option {
	return func(p *Pipeline) { p.persist = enabled }
}

// WithAsync writes to the sink from a goroutine with a detached context so
// the response does not wait on it. Call Wait before shutdown.
func WithAsync(enabled bool) Option {
	return func(p *Pipeline) { p.async = enabled }
}

func WithRules(rules []Rule) Option {
	return func(p *Pipeline) {
		if len(rules) > 0 {
			p.rules = rules
		}
	}
}

// WithWriteTimeout bounds each sink write. Non-positive values are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a pipeline. A nil sink disables persistence regardless of WithPersist.
func New(sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{sink: sink, log: logrus.StandardLogger(), rules: DefaultRules, now: time.Now, writeTimeout: DefaultWriteTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil {
		p.persist = false
	}
	return p
}

// Persisting reports whether records are written to the sink.
func (p *Pipeline) Persisting() bool { return p.persist }

// Wait blocks until all asynchronous sink writes have returned.
func (p *Pipeline) Wait() { p.pending.Wait() }

// Scope is the audit state of one in-flight request.
type Scope struct {
	p         *Pipeline
	requestID string
	start     time.Time
	method    string
	path      string
	ip        string
	userAgent string

	once sync.Once
	rec  Record
}

// Begin captures the request's correlation id, start time, client address
// and user agent. The query string is never captured.
func (p *Pipeline) Begin(r *http.Request) *Scope {
	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		ua = "-"
	}
	return &Scope{
		p:         p,
		requestID: reqid.New(),
		start:     p.now(),
		method:    r.Method,
		path:      r.URL.Path,
		ip:        ClientIP(r),
		userAgent: ua,
	}
}

func (s *Scope) RequestID() string { return s.requestID }

// Context returns ctx carrying the scope's request id.
func (s *Scope) Context(ctx context.Context) context.Context {
	return reqid.WithRequestID(ctx, s.requestID)
}

// Finish classifies and emits the request exactly once. Later calls return
// the first call's record and have no effect.
func (s *Scope) Finish(ctx context.Context, status int, id identity.Identity) Record {
	s.once.Do(func() {
		p := s.p
		now := p.now()
		s.rec = Record{
			ID:         uuid.NewString(),
			RequestID:  s.requestID,
			Action:     Classify(p.rules, s.method, s.path),
			Actor:      id.Actor(),
			Method:     s.method,
			Path:       s.path,
			Status:     status,
			IP:         s.ip,
			UserAgent:  s.userAgent,
			DurationMs: now.Sub(s.start).Milliseconds(),
			CreatedAt:  now,
		}

		entry := p.log.WithFields(logrus.Fields{
			"request_id":  s.rec.RequestID,
			"action":      s.rec.Action,
			"user":        s.rec.Actor,
			"method":      s.rec.Method,
			"path":        s.rec.Path,
			"status":      s.rec.Status,
			"ip":          s.rec.IP,
			"duration_ms": s.rec.DurationMs,
		})
		if status >= http.StatusBadRequest {
			entry.Warn("request completed")
		} else {
			entry.Info("request completed")
		}

		if p.persist {
			p.write(ctx, s.rec)
		}
	})
	return s.rec
}

// write detaches ctx from the request so a client that has gone away still
// gets its record, and bounds the sink call with writeTimeout.
func (p *Pipeline) write(ctx context.Context, rec Record) {
	detached := context.WithoutCancel(ctx)
	if !p.async {
		p.deliver(detached, rec)
		return
	}
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.deliver(detached, rec)
	}()
}

func (p *Pipeline) deliver(ctx context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("request_id", rec.RequestID).WithField("panic", r).Error("audit sink panicked")
		}
	}()
	if err := p.sink.Write(ctx, rec); err != nil {
		p.log.WithError(err).WithField("request_id", rec.RequestID).Error("audit persist failed")
	}
}

// ClientIP returns the first X-Forwarded-For hop, else the peer host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
