package converter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/metrics"
)

// Direction of a conversion.
type Direction string

const (
	DirectionEncrypt Direction = "encrypt"
	DirectionDecrypt Direction = "decrypt"
)

// ErrPayloadTooLarge marks items routed to interfaces.RouteSizeExceeded.
var ErrPayloadTooLarge = errors.New("payload exceeds container size limit")

// ClientSource leases the shared SDK client, e.g. *sdkclient.Manager.
// release is called once the batch no longer uses the client.
type ClientSource interface {
	Acquire(ctx context.Context) (client interfaces.TDFClient, release func(), err error)
}

// ConfigAssembler builds the per-item conversion config, e.g. *conversion.Assembler.
type ConfigAssembler interface {
	Assemble(ctx context.Context, item interfaces.Item, format interfaces.ContainerFormat) (*interfaces.ConversionConfig, error)
}

// itemFunc converts a single item. It is only called once the batch has started.
type itemFunc func(ctx context.Context, client interfaces.TDFClient, item interfaces.Item) interfaces.Outcome

// runBatch processes the items in order with the shared client and records metrics.
func runBatch(ctx context.Context, log *slog.Logger, clients ClientSource, direction Direction, format interfaces.ContainerFormat, batch []interfaces.Item, prepare func() error, convert itemFunc) ([]interfaces.Outcome, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	start := time.Now()

	client, release, err := clients.Acquire(ctx)
	if err == nil {
		defer release()
	}
	if err == nil && prepare != nil {
		err = prepare()
	}
	if err != nil {
		metrics.ObserveBatch(string(direction), format.String(), metrics.BatchAborted, time.Since(start))
		log.Error("could not start batch", "direction", direction, "format", format, "items", len(batch), "err", err)
		return nil, err
	}

	outcomes := make([]interfaces.Outcome, 0, len(batch))
	for _, item := range batch {
		outcome := convert(ctx, client, item)
		if outcome.Err != nil {
			log.Error("error converting item", "item", item.ID, "direction", direction, "format", format, "route", outcome.Route, "err", outcome.Err)
		}
		metrics.ObserveItem(string(direction), format.String(), outcome.Route.String())
		outcomes = append(outcomes, outcome)
	}

	metrics.ObserveBatch(string(direction), format.String(), metrics.BatchCompleted, time.Since(start))
	return outcomes, nil
}

func failed(item interfaces.Item, err error) interfaces.Outcome {
	return interfaces.Outcome{Item: item, Route: interfaces.RouteFailure, Err: err}
}
