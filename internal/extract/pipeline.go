// Package extract turns an uploaded document into a structured field record:
// embedded text layer first, OCR when the text layer is too sparse, then the
// per-type field rules.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kyc-backend/internal/fields"
	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/metrics"
)

var tracer = otel.Tracer("kyc-backend/extract")

// DefaultMinTextLength is the normalized text length, in characters, below
// which OCR runs.
const DefaultMinTextLength = 20

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

type Method string

const (
	MethodNone Method = "none"
	MethodText Method = "text"
	MethodOCR  Method = "ocr"
)

const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonNoRules         = "no_rules"
)

// Result is the outcome of one extraction.
type Result struct {
	Status     Status
	Method     Method
	Reason     string
	Fields     fields.Record
	TextLength int
	Error      string
}

// Pipeline runs text layer, OCR fallback and field rules in order.
type Pipeline struct {
	Text          TextLayer
	OCR           Recognizer
	Fields        *fields.Registry
	MinTextLength int
	Logger        *slog.Logger
}

func (p *Pipeline) minText() int {
	if p.MinTextLength > 0 {
		return p.MinTextLength
	}
	return DefaultMinTextLength
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Extract classifies raw by docType. OCR and text-layer failures produce a
// failed Result with every field nil and a nil error; only scratch-file I/O
// errors are returned.
func (p *Pipeline) Extract(ctx context.Context, docType, mimeType string, raw []byte) (Result, error) {
	ctx, span := tracer.Start(ctx, "extract.pipeline",
		trace.WithAttributes(attribute.String("document_type", docType), attribute.String("mime", mimeType)))
	defer span.End()

	set, ok := p.Fields.Lookup(docType)
	if !ok {
		return p.finish(Result{Status: StatusSkipped, Method: MethodNone, Reason: ReasonUnsupportedType}), nil
	}
	if !set.Supported() {
		return p.finish(Result{Status: StatusSkipped, Method: MethodNone, Reason: ReasonNoRules, Fields: set.Empty()}), nil
	}

	text := ""
	if p.Text != nil {
		layer, err := p.Text.Text(ctx, raw, mimeType)
		if err != nil {
			p.logger().Debug("text layer unavailable", "document_type", docType, "error", err)
		} else {
			text = Normalize(layer)
		}
	}

	method := MethodText
	if utf8.RuneCountInString(text) < p.minText() {
		method = MethodOCR
		if p.OCR == nil {
			return p.finish(failed(set, method, apperr.New(apperr.KindExtraction, "text layer too sparse and ocr is not configured"))), nil
		}
		out, err := p.OCR.Recognize(ctx, raw, mimeType)
		if err != nil {
			if errors.Is(err, apperr.ErrStorageIO) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "ocr scratch io")
				metrics.ExtractionsTotal.WithLabelValues(string(method), "error").Inc()
				return Result{}, err
			}
			p.logger().Warn("ocr failed", "document_type", docType, "error", err)
			return p.finish(failed(set, method, err)), nil
		}
		text = Normalize(out)
	}

	return p.finish(Result{
		Status:     StatusSucceeded,
		Method:     method,
		Fields:     set.Extract(text),
		TextLength: utf8.RuneCountInString(text),
	}), nil
}

func failed(set *fields.RuleSet, method Method, err error) Result {
	return Result{
		Status: StatusFailed,
		Method: method,
		Fields: set.Empty(),
		Error:  apperr.MessageOf(err),
	}
}

func (p *Pipeline) finish(res Result) Result {
	metrics.ExtractionsTotal.WithLabelValues(string(res.Method), string(res.Status)).Inc()
	return res
}
