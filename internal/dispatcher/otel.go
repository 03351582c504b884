package dispatcher

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/motorsim/motorsim/internal/dispatcher"

// instruments are the per-dispatcher command counters, labelled by keyword.
type instruments struct {
	processed metric.Int64Counter
	rejected  metric.Int64Counter
	latency   metric.Float64Histogram
}

// newInstruments uses the global meter provider, a no-op until one is set.
func newInstruments() (instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)

	in.processed, err = m.Int64Counter(
		"dispatcher.commands.processed",
		metric.WithDescription("Total commands handled successfully"),
	)
	if err != nil {
		return in, fmt.Errorf("creating processed counter: %w", err)
	}

	in.rejected, err = m.Int64Counter(
		"dispatcher.commands.rejected",
		metric.WithDescription("Total commands rejected without a reply"),
	)
	if err != nil {
		return in, fmt.Errorf("creating rejected counter: %w", err)
	}

	in.latency, err = m.Float64Histogram(
		"dispatcher.commands.duration",
		metric.WithDescription("Handler time per command"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return in, fmt.Errorf("creating duration histogram: %w", err)
	}

	return in, nil
}
