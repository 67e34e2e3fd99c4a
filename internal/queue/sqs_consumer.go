// Package queue provides an alternative command transport: request envelopes
// arrive on an SQS queue instead of HTTP, and the response envelope is
// published to an optional reply queue.
package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/config"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/dispatch"
)

type SQSConsumer struct {
	sqsClient     *sqs.Client
	queueURL      string
	replyQueueURL string
	dispatcher    *dispatch.Dispatcher
}

func NewSQSConsumer(client *sqs.Client, cfg *config.Config, dispatcher *dispatch.Dispatcher) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:     client,
		queueURL:      cfg.SQSCommandQueueURL,
		replyQueueURL: cfg.SQSReplyQueueURL,
		dispatcher:    dispatcher,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("SQS consumer listening on queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS consumer: context cancelled, stopping")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("SQS consumer: receive failed: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("SQS consumer: context cancelled while waiting to retry")
					return
				}
				continue
			}

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("SQS consumer: empty message body, deleting")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				c.handleMessage(ctx, *message.Body)
				// Dispatch always produces an envelope, so the message is
				// done either way; redelivery would only repeat a failure.
				c.deleteMessage(ctx, message.ReceiptHandle)
			}
		}
	}
}

func (c *SQSConsumer) handleMessage(ctx context.Context, body string) {
	var req dispatch.Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		log.Printf("SQS consumer: unparseable command message: %v. Body: %s", err, body)
		return
	}

	resp := c.dispatcher.Dispatch(ctx, req)
	if !resp.Success {
		log.Printf("SQS consumer: command %s failed: %s", req.Command, resp.Message)
	}
	c.publishReply(ctx, resp)
}

func (c *SQSConsumer) publishReply(ctx context.Context, resp dispatch.Response) {
	if c.replyQueueURL == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("SQS consumer: marshalling reply failed: %v", err)
		return
	}
	_, err = c.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.replyQueueURL,
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		log.Printf("SQS consumer: publishing reply failed: %v", err)
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS consumer: nil receipt handle, cannot delete message")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS consumer: deleting message failed: %v", delErr)
	}
}
