// Package kafka publishes pricing lifecycle events for downstream
// consumers (notifications, analytics). Publication is fire-and-forget
// from the pipeline's point of view.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// Event type constants
const (
	EventRunStarted             = "RUN_STARTED"
	EventRunCompleted           = "RUN_COMPLETED"
	EventRecommendationsWritten = "RECOMMENDATIONS_WRITTEN"
)

// PricingEvent is the wire envelope for every event on the pricing topic.
type PricingEvent struct {
	EventType                string    `json:"event_type"`
	RunID                    string    `json:"run_id,omitempty"`
	RunType                  string    `json:"run_type,omitempty"`
	UserID                   *int64    `json:"user_id,omitempty"`
	PropertyID               int64     `json:"property_id,omitempty"`
	PropertiesProcessed      int       `json:"properties_processed,omitempty"`
	RecommendationsGenerated int       `json:"recommendations_generated,omitempty"`
	ErrorsCount              int       `json:"errors_count,omitempty"`
	RecommendationCount      int       `json:"recommendation_count,omitempty"`
	WindowStart              string    `json:"window_start,omitempty"`
	WindowEnd                string    `json:"window_end,omitempty"`
	Timestamp                time.Time `json:"timestamp"`
}

// Producer handles publishing pricing events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// RunStarted implements the pipeline's EventSink.
func (p *Producer) RunStarted(ctx context.Context, run *models.PipelineRun) {
	p.publishBestEffort(ctx, run.ID, PricingEvent{
		EventType: EventRunStarted,
		RunID:     run.ID,
		RunType:   run.RunType,
		UserID:    run.UserID,
		Timestamp: time.Now(),
	})
}

// RunCompleted implements the pipeline's EventSink.
func (p *Producer) RunCompleted(ctx context.Context, run *models.PipelineRun) {
	p.publishBestEffort(ctx, run.ID, PricingEvent{
		EventType:                EventRunCompleted,
		RunID:                    run.ID,
		RunType:                  run.RunType,
		UserID:                   run.UserID,
		PropertiesProcessed:      run.PropertiesProcessed,
		RecommendationsGenerated: run.RecommendationsGenerated,
		ErrorsCount:              run.ErrorsCount,
		Timestamp:                time.Now(),
	})
}

// RecommendationsWritten implements the pipeline's EventSink.
func (p *Producer) RecommendationsWritten(ctx context.Context, propertyID int64, count int, from, to time.Time) {
	p.publishBestEffort(ctx, strconv.FormatInt(propertyID, 10), PricingEvent{
		EventType:           EventRecommendationsWritten,
		PropertyID:          propertyID,
		RecommendationCount: count,
		WindowStart:         from.Format("2006-01-02"),
		WindowEnd:           to.Format("2006-01-02"),
		Timestamp:           time.Now(),
	})
}

func (p *Producer) publishBestEffort(ctx context.Context, key string, event PricingEvent) {
	if err := p.publish(ctx, key, event); err != nil {
		log.Printf("kafka: failed to publish %s: %v", event.EventType, err)
	}
}

func (p *Producer) publish(ctx context.Context, key string, event PricingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
