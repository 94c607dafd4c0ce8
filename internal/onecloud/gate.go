// Package onecloud is a client for the 1cloud.ru hosting API.
//
// Every call goes through a Gate, which enforces the provider's per-verb
// request spacing before anything reaches the network and maps response
// statuses onto *Error values.
package onecloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/core/engine"
	"github.com/onecloud/onecloud/internal/metrics"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.1cloud.ru"
	// DefaultTimeout bounds a single dispatch.
	DefaultTimeout = 5 * time.Second

	defaultUserAgent = "onecloud-go"
)

// ErrMissingToken is returned when a gate is built without a credential.
var ErrMissingToken = errors.New("api token is required")

// Logger is the subset of the gofulmen/zap logger API the gate uses.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Gate dispatches API calls subject to per-verb pacing.
type Gate struct {
	token     string
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	pacer     *engine.Pacer
	logger    Logger
	validate  bool
}

// Option customizes a Gate.
type Option func(*Gate)

func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithBaseURL(u string) Option {
	return func(g *Gate) {
		if u = strings.TrimSpace(u); u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gate) {
		if c != nil {
			g.client = c
		}
	}
}

// WithPacer replaces the default in-memory pacer, e.g. with one backed by a
// marker store.
func WithPacer(p *engine.Pacer) Option {
	return func(g *Gate) {
		if p != nil {
			g.pacer = p
		}
	}
}

func WithLogger(l Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(g *Gate) {
		if ua = strings.TrimSpace(ua); ua != "" {
			g.userAgent = ua
		}
	}
}

// WithValidation enables client-side checks of server sizing parameters.
func WithValidation(enabled bool) Option {
	return func(g *Gate) {
		g.validate = enabled
	}
}

// NewGate builds a gate for token. A fresh gate has no dispatch recorded.
func NewGate(token string, opts ...Option) (*Gate, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	g := &Gate{
		token:     token,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		timeout:   DefaultTimeout,
		client:    &http.Client{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pacer == nil {
		g.pacer = engine.NewPacer(nil, TokenScope(token))
	}
	return g, nil
}

// TokenScope derives a stable, non-reversible marker scope from a token.
func TokenScope(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:6])
}

// Pacer exposes the gate's pacer for diagnostics.
func (g *Gate) Pacer() *engine.Pacer {
	return g.pacer
}

// Validating reports whether client-side validation is enabled.
func (g *Gate) Validating() bool {
	return g != nil && g.validate
}

// Dispatch sends one API call. body is JSON-encoded when non-nil. A 200
// response is returned as raw JSON; an empty 200 body yields JSON null.
func (g *Gate) Dispatch(ctx context.Context, verb, path string, body any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	verb = strings.ToUpper(strings.TrimSpace(verb))
	if !supportedVerb(verb) {
		return nil, &Error{Kind: KindValidation, Verb: verb, Path: path, Message: fmt.Sprintf("unsupported request type %q", verb), Err: engine.ErrUnsupportedVerb}
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Verb: verb, Path: path, Message: "encode request body: " + err.Error(), Err: err}
		}
		payload = encoded
	}

	allowed, wait, err := g.pacer.Admit(ctx, verb)
	if err != nil {
		if errors.Is(err, engine.ErrUnsupportedVerb) {
			return nil, &Error{Kind: KindValidation, Verb: verb, Path: path, Message: err.Error(), Err: err}
		}
		g.logger.Warn("Pacing store unavailable", zap.String("verb", verb), zap.Error(err))
	}
	if !allowed {
		metrics.RecordPacingRejection(verb)
		g.logger.Debug("Dispatch paced",
			zap.String("verb", verb),
			zap.String("path", path),
			zap.Duration("wait", wait))
		return nil, pacingError(verb, path, wait)
	}

	return g.send(ctx, verb, path, payload)
}

func (g *Gate) send(ctx context.Context, verb, path string, payload []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, verb, g.baseURL+path, reader)
	if err != nil {
		return nil, g.finish(verb, path, requestID, payload, start, 0, nil,
			&Error{Kind: KindValidation, Verb: verb, Path: path, Message: "build request: " + err.Error(), Err: err})
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.finish(verb, path, requestID, payload, start, 0, nil,
			&Error{Kind: KindTransport, Verb: verb, Path: path, Message: err.Error(), Err: err})
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, g.finish(verb, path, requestID, payload, start, resp.StatusCode, nil,
			&Error{Kind: KindTransport, Verb: verb, Path: path, Message: "read response: " + err.Error(), Err: err})
	}

	if resp.StatusCode != http.StatusOK {
		return nil, g.finish(verb, path, requestID, payload, start, resp.StatusCode, respBody,
			statusError(verb, path, resp.StatusCode, respBody))
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if !json.Valid(trimmed) {
		return nil, g.finish(verb, path, requestID, payload, start, resp.StatusCode, nil,
			&Error{Kind: KindDecode, StatusCode: resp.StatusCode, Verb: verb, Path: path, Message: "response is not valid JSON", Err: errors.New("invalid json")})
	}

	result := json.RawMessage(trimmed)
	return result, g.finish(verb, path, requestID, payload, start, resp.StatusCode, result, nil)
}

// finish logs, counts and traces a completed dispatch and returns dispatchErr
// unchanged (nil on success).
func (g *Gate) finish(verb, path, requestID string, payload []byte, start time.Time, status int, body []byte, dispatchErr *Error) error {
	elapsed := time.Since(start)

	outcome := "ok"
	fields := []zap.Field{
		zap.String("verb", verb),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", status),
		zap.Duration("duration", elapsed),
	}
	if dispatchErr != nil {
		outcome = string(dispatchErr.Kind)
		g.logger.Warn("Dispatch failed", append(fields, zap.String("kind", outcome), zap.String("error", dispatchErr.Message))...)
	} else {
		g.logger.Debug("Dispatch complete", fields...)
	}
	metrics.RecordDispatch(verb, outcome, elapsed)

	entry := TraceEntry{
		RequestID:  requestID,
		Verb:       verb,
		Path:       path,
		StatusCode: status,
		DurationMs: elapsed.Milliseconds(),
	}
	if len(payload) > 0 {
		entry.RequestBody = json.RawMessage(payload)
	}
	if len(body) > 0 && json.Valid(body) {
		entry.Response = json.RawMessage(body)
	}
	if dispatchErr != nil {
		entry.Error = dispatchErr.Message
	}
	Trace(entry)

	if dispatchErr != nil {
		return dispatchErr
	}
	return nil
}

func supportedVerb(verb string) bool {
	switch verb {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
