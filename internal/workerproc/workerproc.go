// Package workerproc turns raw queue payloads into re-extraction runs and
// decides what the poller should do with each delivery.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"kyc-backend/internal/documents"
	"kyc-backend/internal/queue"
	"kyc-backend/internal/shared/apperr"
)

// Processor re-runs extraction on a stored document.
type Processor interface {
	ReExtractByID(ctx context.Context, docID string) (documents.Document, error)
}

// Outcome tells the poller whether a delivery is finished.
type Outcome string

const (
	// OutcomeCompleted means extraction ran; the message is acknowledged.
	OutcomeCompleted Outcome = "completed"
	// OutcomeInvalid means the payload can never be processed.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeDocumentGone means the document was deleted after enqueueing.
	OutcomeDocumentGone Outcome = "document_gone"
	// OutcomeRetry leaves the message for redelivery.
	OutcomeRetry Outcome = "retry"
)

// Acknowledge reports whether the message should be removed from the queue.
func (o Outcome) Acknowledge() bool {
	return o != OutcomeRetry
}

// Fingerprint identifies a payload in logs without echoing it.
type Fingerprint struct {
	Size   int
	SHA256 string
}

func fingerprint(body string) Fingerprint {
	if body == "" {
		return Fingerprint{}
	}
	sum := sha256.Sum256([]byte(body))
	return Fingerprint{Size: len(body), SHA256: hex.EncodeToString(sum[:])}
}

// InvalidMessageError describes a payload rejected before processing.
type InvalidMessageError struct {
	Reason    string
	RequestID string
	Err       error
}

func (e *InvalidMessageError) Error() string {
	if e.Err == nil {
		return "invalid message: " + e.Reason
	}
	return "invalid message: " + e.Reason + ": " + e.Err.Error()
}

func (e *InvalidMessageError) Unwrap() error { return e.Err }

// Result is what Process reports back for one delivery.
type Result struct {
	Outcome     Outcome
	Message     queue.Message
	Fingerprint Fingerprint
	Err         error
}

// Parse decodes and validates a payload.
func Parse(body string) (queue.Message, error) {
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, &InvalidMessageError{Reason: "empty_body"}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, &InvalidMessageError{Reason: "decode", Err: err}
	}
	if err := msg.Validate(); err != nil {
		return msg, &InvalidMessageError{Reason: "validate", RequestID: msg.RequestID, Err: err}
	}
	return msg, nil
}

// Process runs one delivery end to end. Documents removed since the job was
// queued are dropped; any other processing failure is retried.
func Process(ctx context.Context, proc Processor, body string) Result {
	res := Result{Fingerprint: fingerprint(body)}

	msg, err := Parse(body)
	res.Message = msg
	if err != nil {
		res.Outcome, res.Err = OutcomeInvalid, err
		return res
	}
	if proc == nil {
		res.Outcome, res.Err = OutcomeRetry, errors.New("document service not configured")
		return res
	}

	if _, err := proc.ReExtractByID(ctx, msg.DocumentID); err != nil {
		res.Err = err
		if errors.Is(err, apperr.ErrNotFound) {
			res.Outcome = OutcomeDocumentGone
		} else {
			res.Outcome = OutcomeRetry
		}
		return res
	}
	res.Outcome = OutcomeCompleted
	return res
}
