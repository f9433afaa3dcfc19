package allocation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/metinatakli/seatsync/internal/allocation"

type instruments struct {
	requests  metric.Int64Counter
	rollbacks metric.Int64Counter
	lostHolds metric.Int64Counter
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)

	return instruments{
		requests:  counter(meter, "seatsync.allocation.requests", "Allocation requests by operation and outcome"),
		rollbacks: counter(meter, "seatsync.allocation.rollbacks", "Optimistic seat transitions rolled back"),
		lostHolds: counter(meter, "seatsync.allocation.lost_holds", "Held seats taken away by authoritative updates"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}

	return c
}
