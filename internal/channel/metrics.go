package channel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/metinatakli/seatsync/internal/channel"

type instruments struct {
	connectAttempts metric.Int64Counter
	events          metric.Int64Counter
	droppedPayloads metric.Int64Counter
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)

	return instruments{
		connectAttempts: counter(meter, "seatsync.channel.connect_attempts", "Push channel connection attempts"),
		events:          counter(meter, "seatsync.channel.events", "Push channel events applied"),
		droppedPayloads: counter(meter, "seatsync.channel.dropped_payloads", "Push channel payloads dropped as malformed"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}

	return c
}
