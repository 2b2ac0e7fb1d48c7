package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-digital-market.git/internal/kafka"
	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/ariefcatur/go-digital-market.git/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

// Service menerjemahkan sinyal payment gateway jadi aksi engine:
// confirmed -> MarkPaid + auto-fulfill, failed/expired -> release stok.
// Engine tidak pernah memulai payment, cuma bereaksi.
type Service struct {
	Repo              *market.FulfillmentRepo
	Redis             *redis.Client
	ProducerCompleted *kafkax.Producer // publish order.completed
	ProducerCancelled *kafkax.Producer // publish order.cancelled
	ServiceName       string
}

// HandlePaymentEvent: dipasang sebagai handler consumer untuk ketiga topic
// payment.*. Return error = offset tidak di-commit, pesan diproses ulang;
// karena itu kondisi yang tidak akan membaik dengan retry (order sudah
// cancelled, id tidak dikenal) ditelan dengan log, bukan error.
func (s *Service) HandlePaymentEvent(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Error().Err(err).Msg("malformed payment event, skipping")
		return nil // pesan rusak tidak akan membaik dengan retry
	}

	switch env.EventType {
	case market.EventPaymentConfirmed, market.EventPaymentFailed, market.EventPaymentExpired:
	default:
		return nil // ignore
	}

	// dedup via Redis (pakai event_id), gateway bisa kirim dobel
	dkey := fmt.Sprintf(redisx.KeyDedup, "payments", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[market.PaymentEventPayload](env.Payload)
	if err != nil {
		log.Error().Err(err).Str("event_id", env.EventID).Msg("bad payment payload, skipping")
		return nil
	}

	switch env.EventType {
	case market.EventPaymentConfirmed:
		err = s.handleConfirmed(ctx, p, env.TraceID)
	case market.EventPaymentFailed:
		err = s.handleReleased(ctx, p.OrderID, market.OrderFailed, market.PaymentFailed, "PAYMENT_FAILED", env.TraceID)
	case market.EventPaymentExpired:
		err = s.handleReleased(ctx, p.OrderID, market.OrderCancelled, market.PaymentCancelled, "RESERVATION_EXPIRED", env.TraceID)
	}
	if err != nil {
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (s *Service) handleConfirmed(ctx context.Context, p market.PaymentEventPayload, trace string) error {
	o, err := s.Repo.MarkPaid(ctx, p.OrderID)
	switch {
	case err == nil:
	case errors.Is(err, market.ErrWrongState):
		// payment nyusul setelah cancel/expire; gateway yang harus refund
		log.Warn().Str("order_id", p.OrderID).Err(err).Msg("payment for non-payable order")
		return nil
	case errors.Is(err, market.ErrNotFound):
		log.Warn().Str("order_id", p.OrderID).Msg("payment for unknown order")
		return nil
	default:
		return err
	}
	s.cacheStatus(ctx, o.ID, o.Status, o.PaymentStatus)
	if o.Status == market.OrderCompleted {
		return nil // event ulang atas order yang sudah selesai
	}

	// auto-delivery: fulfill tiap line pakai payload tersimpan di unitnya
	ids, err := s.Repo.PendingLineIDs(ctx, o.ID)
	if err != nil {
		return err
	}
	completed := false
	for _, id := range ids {
		_, done, err := s.Repo.FulfillItem(ctx, id, s.ServiceName, true, "")
		if errors.Is(err, market.ErrAlreadyFulfilled) {
			continue // balapan dengan fulfill manual seller, bukan masalah
		}
		if err != nil {
			return err
		}
		completed = completed || done
	}
	if !completed {
		return nil
	}

	s.cacheStatus(ctx, o.ID, market.OrderCompleted, market.PaymentPaid)
	s.publish(s.ProducerCompleted, market.EventOrderCompleted, o.ID, trace,
		market.OrderCompletedPayload{OrderID: o.ID})
	log.Info().Str("order_id", o.ID).Msg("order completed")
	return nil
}

func (s *Service) handleReleased(ctx context.Context, orderID string, final market.OrderStatus, payment market.PaymentStatus, reason, trace string) error {
	o, err := s.Repo.Release(ctx, orderID, final, payment)
	switch {
	case err == nil:
	case errors.Is(err, market.ErrWrongState):
		log.Warn().Str("order_id", orderID).Err(err).Msg("release on non-pending order, skipping")
		return nil
	case errors.Is(err, market.ErrNotFound):
		log.Warn().Str("order_id", orderID).Msg("release for unknown order")
		return nil
	default:
		return err
	}

	s.cacheStatus(ctx, o.ID, o.Status, o.PaymentStatus)
	s.publish(s.ProducerCancelled, market.EventOrderCancelled, o.ID, trace,
		market.OrderCancelledPayload{OrderID: o.ID, FinalStatus: final, Reason: reason})
	log.Info().Str("order_id", o.ID).Str("reason", reason).Msg("reservation released")
	return nil
}

func (s *Service) publish(p *kafkax.Producer, eventType, orderID, trace string, payload any) {
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(market.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st market.OrderStatus, ps market.PaymentStatus) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]any{"status": st, "payment_status": ps})
	_ = s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
