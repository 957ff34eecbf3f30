package tracing

import (
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsetup/internal/logger"
)

func TestNewJaegerTracer_Disabled(t *testing.T) {
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	tracer, closer, err := NewJaegerTracer(&JaegerConfig{Enabled: false}, log)

	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tracer)
	assert.NoError(t, closer.Close())
}

func TestJaegerConfiguration_Reporter(t *testing.T) {
	agent := jaegerConfiguration(&JaegerConfig{ServiceName: "mailsetup", AgentHost: "jaeger", AgentPort: "6831", SamplerType: "const", SamplerParam: 1})
	collector := jaegerConfiguration(&JaegerConfig{ServiceName: "mailsetup", Endpoint: "http://jaeger:14268/api/traces"})

	assert.Equal(t, "jaeger:6831", agent.Reporter.LocalAgentHostPort)
	assert.Empty(t, agent.Reporter.CollectorEndpoint)
	assert.Equal(t, "const", agent.Sampler.Type)
	assert.Equal(t, "http://jaeger:14268/api/traces", collector.Reporter.CollectorEndpoint)
	assert.Empty(t, collector.Reporter.LocalAgentHostPort)
}
