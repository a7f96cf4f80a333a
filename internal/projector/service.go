// Package projector keeps a Redis view of each equipment item's stock,
// built from committed catalog and order events.
package projector

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	kafkax "github.com/ariefcatur/equipment-orders/internal/kafka"
	"github.com/ariefcatur/equipment-orders/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	Cache       *redisx.StockCache
	Logger      *zap.Logger
	ServiceName string
}

// HandleEvent is installed as the consumer handler. Events already applied
// are skipped by id.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// A poison message would otherwise block its partition.
		s.log().Error("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	seen, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if seen {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		return err
	}

	if _, err := redisx.MarkProcessed(ctx, s.Redis, s.ServiceName, env.EventID); err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env catalog.Envelope) error {
	switch env.EventType {
	case catalog.EventEquipmentDeleted:
		if err := s.Cache.Delete(ctx, env.CorrelationID); err != nil {
			return fmt.Errorf("drop stock view: %w", err)
		}
		s.log().Debug("stock view dropped", zap.String("equipment_id", env.CorrelationID))
		return nil

	case catalog.EventEquipmentCreated, catalog.EventEquipmentUpdated,
		catalog.EventOrderReserved, catalog.EventOrderAmended, catalog.EventOrderReleased:
		view, err := kafkax.UnwrapPayload[catalog.StockView](env.Payload)
		if err != nil {
			return err
		}
		entry := redisx.StockEntry{Stock: view.Stock, UpdatedAt: env.OccurredAt}
		if err := s.Cache.Set(ctx, view.EquipmentID, entry); err != nil {
			return fmt.Errorf("write stock view: %w", err)
		}
		s.log().Debug("stock view updated",
			zap.String("event_type", env.EventType),
			zap.String("equipment_id", view.EquipmentID),
			zap.Int("stock", view.Stock))
		return nil

	default:
		return nil
	}
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
