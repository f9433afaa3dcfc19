package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func TestNewResource(t *testing.T) {
	opts := Options{Version: "v1.2.0", Env: "staging", MatchID: 12}

	res, err := newResource(context.Background(), opts)
	require.NoError(t, err)

	attrs := res.Set()

	name, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, ServiceName, name.AsString())

	match, ok := attrs.Value(attribute.Key("seatsync.match_id"))
	require.True(t, ok)
	assert.Equal(t, int64(12), match.AsInt64())

	instance, ok := attrs.Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	assert.NotEmpty(t, instance.AsString())

	other, err := newResource(context.Background(), opts)
	require.NoError(t, err)
	otherInstance, _ := other.Set().Value(semconv.ServiceInstanceIDKey)
	assert.NotEqual(t, instance.AsString(), otherInstance.AsString())
}

func TestNewResource_WithoutMatch(t *testing.T) {
	res, err := newResource(context.Background(), Options{Env: "dev"})
	require.NoError(t, err)

	_, ok := res.Set().Value(attribute.Key("seatsync.match_id"))
	assert.False(t, ok)
}
