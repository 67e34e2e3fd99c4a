// Package iot publishes lot availability to the entrance display boards over
// AWS IoT Core. The boards subscribe to an MQTT topic and render the
// free-spot count; the service republishes on a fixed schedule so a board
// that reconnects converges within one period.
package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/metrics"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

type displayPayload struct {
	FreeSpots  int       `json:"free_spots"`
	TotalSpots int       `json:"total_spots"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DisplayPublisher struct {
	iotDataClient *iotdataplane.Client
	topic         string
	spots         repository.SpotRepository
}

func NewDisplayPublisher(client *iotdataplane.Client, topic string, spots repository.SpotRepository) *DisplayPublisher {
	return &DisplayPublisher{iotDataClient: client, topic: topic, spots: spots}
}

// Publish reads the current spot counts and pushes them to the display
// topic. Registered as a scheduler task.
func (p *DisplayPublisher) Publish(ctx context.Context) error {
	total, err := p.spots.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting spots: %w", err)
	}
	free, err := p.spots.CountByStatus(ctx, domain.SpotFree)
	if err != nil {
		return fmt.Errorf("counting free spots: %w", err)
	}
	metrics.SetFreeSpots(free)

	payloadBytes, err := json.Marshal(displayPayload{
		FreeSpots:  free,
		TotalSpots: total,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling display payload: %w", err)
	}

	_, err = p.iotDataClient.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(p.topic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("publishing to display topic %s: %w", p.topic, err)
	}
	log.Printf("display publisher: %d/%d spots free pushed to %s", free, total, p.topic)
	return nil
}
