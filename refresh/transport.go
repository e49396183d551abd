package refresh

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/dashAuth/internal/metrics"
)

type ctxKey int

const (
	retriedKey ctxKey = iota
	skipRefreshKey
)

// MarkRetried returns a context whose requests are never retried on 401.
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

// Retried reports whether ctx carries the retried marker.
func Retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}

func skipRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey, true)
}

func skipsRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(skipRefreshKey).(bool)
	return v
}

// Transport returns a RoundTripper that adds the default bearer token and
// coordinates renewal on 401. A nil base uses http.DefaultTransport.
func (c *Coordinator) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{c: c, base: base}
}

// HTTPClient returns an *http.Client using [Coordinator.Transport] over base.
func (c *Coordinator) HTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: c.Transport(base)}
}

type transport struct {
	c    *Coordinator
	base http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if skipsRefresh(ctx) || t.isRefreshCall(req) {
		return t.base.RoundTrip(req)
	}

	token, sent := t.c.current()
	out := req.Clone(ctx)
	if token != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if Retried(ctx) {
		t.c.metrics.Inc(metrics.MetricRefreshRetryExhausted)
		return resp, nil
	}
	if !replayable(req) {
		t.c.logger.Debug("401 on non-replayable request", zap.String("path", req.URL.Path))
		return resp, nil
	}
	discard(resp)

	token, err = t.c.await(ctx, &sent)
	if err != nil {
		return nil, err
	}

	retry, err := rebuild(MarkRetried(ctx), req, token)
	if err != nil {
		return nil, err
	}
	t.c.metrics.Inc(metrics.MetricRefreshRetried)
	resp, err = t.base.RoundTrip(retry)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		t.c.metrics.Inc(metrics.MetricRefreshRetryExhausted)
	}
	return resp, err
}

func (t *transport) isRefreshCall(req *http.Request) bool {
	return req.URL != nil && strings.TrimSuffix(req.URL.Path, "/") == strings.TrimSuffix(t.c.refreshURL, "/")
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rebuild(ctx context.Context, req *http.Request, token string) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	out.Header.Set("Authorization", "Bearer "+token)
	return out, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
