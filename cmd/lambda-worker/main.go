// Command lambda-worker runs re-extraction jobs from an SQS event source
// mapping. Build with:
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The mapping must enable ReportBatchItemFailures so only retryable records
// are redelivered.
package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"kyc-backend/internal/bootstrap"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
	"kyc-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Configure(nil, cfg.LogLevel)
	app, initErr = bootstrap.Build(cfg)
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.worker.bootstrap_failed", map[string]any{"error": initErr})
		return retryAll(event), initErr
	}
	return handle(ctx, app.DocumentsService, event), nil
}

// handle reports every record whose outcome asks for a retry as a batch item
// failure. Completed, invalid and document-gone records are acknowledged.
func handle(ctx context.Context, proc workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	var failures []events.SQSBatchItemFailure
	for _, record := range event.Records {
		res := workerproc.Process(ctx, proc, record.Body)
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"document_id":    res.Message.DocumentID,
			"request_id":     res.Message.RequestID,
			"outcome":        string(res.Outcome),
		}
		if res.Err != nil {
			fields["error"] = res.Err.Error()
		}

		switch res.Outcome {
		case workerproc.OutcomeCompleted:
			telemetry.Info("lambda.worker.completed", fields)
			metrics.ReExtractJobsTotal.WithLabelValues("completed").Inc()
		case workerproc.OutcomeRetry:
			telemetry.Error("lambda.worker.failed", fields)
			metrics.ReExtractJobsTotal.WithLabelValues("failed").Inc()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		default:
			telemetry.Warn("lambda.worker.dropped", fields)
			metrics.ReExtractJobsTotal.WithLabelValues("deleted_unrecoverable").Inc()
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func retryAll(event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
	for _, record := range event.Records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
