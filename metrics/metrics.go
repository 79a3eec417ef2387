// Package metrics exports Prometheus counters for LLM client calls.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the client metrics.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_requests_total",
				Help: "Total number of generation requests",
			},
			[]string{"provider", "model", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchboard_request_duration_milliseconds",
				Help:    "Generation request duration in milliseconds",
				Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
			},
			[]string{"provider", "model"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_tokens_total",
				Help: "Total number of tokens by kind",
			},
			[]string{"provider", "model", "kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_errors_total",
				Help: "Total number of failed generation requests",
			},
			[]string{"provider", "error_type"},
		),
	}

	for _, collector := range []prometheus.Collector{c.requests, c.duration, c.tokens, c.errors} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Instrument wraps client so that every Generate call is counted and timed.
func (c *Collector) Instrument(client llm.Client, provider llm.Provider) llm.Client {
	p := string(provider)
	return llm.ClientFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		start := time.Now()
		resp, err := client.Generate(ctx, req)
		c.duration.WithLabelValues(p, req.Model).Observe(float64(time.Since(start).Milliseconds()))

		if err != nil {
			c.requests.WithLabelValues(p, req.Model, "error").Inc()
			c.errors.WithLabelValues(p, string(llm.TypeOf(err))).Inc()
			return nil, err
		}

		c.requests.WithLabelValues(p, req.Model, "success").Inc()
		c.tokens.WithLabelValues(p, req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		c.tokens.WithLabelValues(p, req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
		if resp.Usage.CacheReadInputTokens > 0 {
			c.tokens.WithLabelValues(p, req.Model, "cache_read").Add(float64(resp.Usage.CacheReadInputTokens))
		}
		if resp.Usage.CacheWriteInputTokens > 0 {
			c.tokens.WithLabelValues(p, req.Model, "cache_write").Add(float64(resp.Usage.CacheWriteInputTokens))
		}
		return resp, nil
	})
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// for node_exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
