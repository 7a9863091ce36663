package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"kyc-backend/internal/documents"
	"kyc-backend/internal/shared/apperr"
)

type stubProcessor map[string]error

func (s stubProcessor) ReExtractByID(ctx context.Context, docID string) (documents.Document, error) {
	return documents.Document{ID: docID}, s[docID]
}

func TestHandleReportsOnlyRetryableRecords(t *testing.T) {
	proc := stubProcessor{
		"doc-flaky": errors.New("tesseract timed out"),
		"doc-gone":  apperr.NotFound("document not found"),
	}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m-ok", Body: `{"kind":"re_extract","documentId":"doc-ok","version":1}`},
		{MessageId: "m-flaky", Body: `{"kind":"re_extract","documentId":"doc-flaky","version":1}`},
		{MessageId: "m-gone", Body: `{"kind":"re_extract","documentId":"doc-gone","version":1}`},
		{MessageId: "m-bad", Body: `not json`},
	}}

	resp := handle(context.Background(), proc, event)

	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m-flaky"}}, resp.BatchItemFailures)
}

func TestRetryAllMarksEveryRecord(t *testing.T) {
	event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "a"}, {MessageId: "b"}}}
	assert.Len(t, retryAll(event).BatchItemFailures, 2)
}
