package converter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// Encryptor converts plaintext items into containers of one format.
type Encryptor struct {
	format    interfaces.ContainerFormat
	clients   ClientSource
	assembler ConfigAssembler
	log       *slog.Logger
}

// NewEncryptor creates an Encryptor producing containers of the given format.
func NewEncryptor(log *slog.Logger, format interfaces.ContainerFormat, clients ClientSource, assembler ConfigAssembler) *Encryptor {
	return &Encryptor{
		format:    format,
		clients:   clients,
		assembler: assembler,
		log:       log,
	}
}

// Format returns the produced container format.
func (e *Encryptor) Format() interfaces.ContainerFormat {
	return e.format
}

// Convert encrypts the batch. Outcomes are in input order.
func (e *Encryptor) Convert(ctx context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
	return runBatch(ctx, e.log, e.clients, DirectionEncrypt, e.format, batch, nil, e.encrypt)
}

func (e *Encryptor) encrypt(ctx context.Context, client interfaces.TDFClient, item interfaces.Item) interfaces.Outcome {
	cfg, err := e.assembler.Assemble(ctx, item, e.format)
	if err != nil {
		return failed(item, err)
	}

	if e.format.SizeBounded() && item.Size() > interfaces.MaxNanoTDFPayloadSize {
		return interfaces.Outcome{
			Item:  item,
			Route: interfaces.RouteSizeExceeded,
			Err:   fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, item.Size(), interfaces.MaxNanoTDFPayloadSize),
		}
	}

	var out bytes.Buffer
	switch e.format {
	case interfaces.FormatNanoTDF:
		err = client.CreateNanoTDF(ctx, &out, bytes.NewReader(item.Payload), cfg)
	default:
		err = client.CreateTDF(ctx, &out, bytes.NewReader(item.Payload), cfg)
	}
	if err != nil {
		return failed(item, &interfaces.ConversionError{Op: "create " + e.format.String(), Err: err})
	}

	return interfaces.Outcome{
		Item: interfaces.Item{
			ID:         item.ID,
			Attributes: item.Attributes.With(interfaces.MIMETypeAttribute, e.format.ContentType()),
			Payload:    out.Bytes(),
		},
		Route: interfaces.RouteSuccess,
	}
}
