package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fitsense-backend/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/shopspring/decimal"
)

const (
	EventPaymentRecorded = "payment.recorded"
	EventPaymentDeleted  = "payment.deleted"
	EventPlanAssigned    = "plan.assigned"
	EventPlanCancelled   = "plan.cancelled"
	EventLivePayment     = "live_payment.recorded"
)

// PaymentEvent is published after a ledger mutation commits.
type PaymentEvent struct {
	Type       string          `json:"type"`
	RecordID   string          `json:"recordId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	EntryID    string          `json:"entryId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PaymentEvent) error { return nil }

type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSPublisher(ctx context.Context, cfg config.EventsConfig) (*SQSPublisher, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSPublisher{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.SQSQueueURL,
	}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("send sqs message: %w", err)
	}
	return nil
}

func publishAsync(p EventPublisher, event PaymentEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Publish(ctx, event); err != nil {
			log.Printf("[EVENTS] publish %s failed: %v", event.Type, err)
		}
	}()
}
