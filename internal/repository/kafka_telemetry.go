package repository

import (
	"context"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	pkgkafka "FinSight/pkg/kafka"
)

// KafkaTelemetry implements TelemetryPublisher for Kafka. Every session
// event goes to one topic, discriminated by the event field.
type KafkaTelemetry struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTelemetry creates a Kafka telemetry publisher.
func NewKafkaTelemetry(producer *pkgkafka.Producer, topic string) drepo.TelemetryPublisher {
	return &KafkaTelemetry{producer: producer, topic: topic}
}

func (p *KafkaTelemetry) PublishSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error {
	if snap == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte("snapshot"), map[string]interface{}{
		"event":                "snapshot",
		"ts":                   snap.ResolvedAt.UnixMilli(),
		"total_value":          snap.TotalValue,
		"total_return":         snap.TotalReturn,
		"total_return_percent": snap.TotalReturnPercent,
		"holding_count":        len(snap.Holdings),
		"sources": map[string]interface{}{
			"total_value":          snap.Sources.TotalValue,
			"total_return":         snap.Sources.TotalReturn,
			"total_return_percent": snap.Sources.TotalReturnPercent,
			"holdings":             snap.Sources.Holdings,
		},
	})
}

func (p *KafkaTelemetry) PublishWake(ctx context.Context, ev models.WakeEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte("wake"), map[string]interface{}{
		"event":   "wake",
		"backend": ev.Backend,
		"keyword": ev.Keyword,
		"ts":      ev.At.UnixMilli(),
	})
}

func (p *KafkaTelemetry) PublishNavigation(ctx context.Context, req *models.NavigationRequest, outcome string) error {
	if req == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte("navigation"), map[string]interface{}{
		"event":   "navigation",
		"id":      req.ID,
		"screen":  req.Screen,
		"outcome": outcome,
		"ts":      req.At.UnixMilli(),
	})
}

// PublishMessage forwards a payload onto an arbitrary topic. It gives the
// telemetry rail the logger collector's publisher shape.
func (p *KafkaTelemetry) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, []byte("logs"), payload)
}

func (p *KafkaTelemetry) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ drepo.TelemetryPublisher = (*KafkaTelemetry)(nil)
