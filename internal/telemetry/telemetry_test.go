package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.Enabled())
	assert.NotNil(t, tel.TracerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_ExportsSpans(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	exp := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), cfg, WithExporter(exp))
	require.NoError(t, err)
	require.True(t, tel.Enabled())

	_, span := tel.TracerProvider().Tracer("test").Start(context.Background(), "api.get_analysis")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "api.get_analysis", spans[0].Name)

	var service string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			service = attr.Value.AsString()
		}
	}
	assert.Equal(t, "plk", service)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		_ = tel.TracerProvider()
		_ = tel.Enabled()
		_ = tel.Shutdown(context.Background())
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, ""},
		{"local insecure", func(c *Config) { c.Enabled = true }, ""},
		{"loopback with scheme", func(c *Config) { c.Enabled = true; c.Endpoint = "http://127.0.0.1:4318"; c.Protocol = "http/protobuf" }, ""},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, ""},
		{"remote insecure", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317" }, "insecure"},
		{"remote tls", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317"; c.Insecure = false }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol"},
		{"bad rate", func(c *Config) { c.Enabled = true; c.SampleRate = 2 }, "sample rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
