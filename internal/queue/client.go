package queue

import (
	"context"
	"time"

	"kyc-backend/internal/shared/apperr"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Jobs turns re-extraction requests into queue messages.
type Jobs struct {
	Client Client
	Now    func() time.Time
}

func NewJobs(client Client) *Jobs {
	return &Jobs{Client: client, Now: time.Now}
}

// EnqueueReExtract queues a re-extraction of docID.
func (j *Jobs) EnqueueReExtract(ctx context.Context, docID, actorID, requestID string) error {
	msg := NewReExtract(docID, actorID, requestID, j.Now())
	if err := j.Client.Send(ctx, msg); err != nil {
		return apperr.StorageIO(err, "unable to queue re-extraction")
	}
	return nil
}
