package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"kyc-backend/internal/documents"
	"kyc-backend/internal/queue"
	"kyc-backend/internal/shared/apperr"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	err error
}

func (f fakeProcessor) ReExtractByID(ctx context.Context, docID string) (documents.Document, error) {
	return documents.Document{ID: docID}, f.err
}

func sqsMessage(t *testing.T, id string, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String("m-" + id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func encoded(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	msg := sqsMessage(t, "1", encoded(t, queue.Message{DocumentID: "doc-1", RequestID: "req-1"}))

	handleMessage(context.Background(), client, "queue", fakeProcessor{}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerKeepsMessageOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	msg := sqsMessage(t, "2", encoded(t, queue.Message{DocumentID: "doc-2", RequestID: "req-2"}))

	handleMessage(context.Background(), client, "queue", fakeProcessor{err: errors.New("boom")}, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDropsMessageForDeletedDocument(t *testing.T) {
	client := &fakeSQS{}
	msg := sqsMessage(t, "3", encoded(t, queue.Message{DocumentID: "doc-3"}))

	handleMessage(context.Background(), client, "queue", fakeProcessor{err: apperr.NotFound("document not found")}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesInvalidMessages(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json":     "{bad-json",
		"empty body":       "",
		"missing document": `{"requestId":"req-4"}`,
		"unknown kind":     `{"kind":"purge","documentId":"doc-4","version":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeSQS{}
			handleMessage(context.Background(), client, "queue", fakeProcessor{}, sqsMessage(t, "4", body))
			if len(client.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(client.deleted))
			}
		})
	}
}
