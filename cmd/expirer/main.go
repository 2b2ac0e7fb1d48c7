package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-digital-market.git/internal/config"
	kafkax "github.com/ariefcatur/go-digital-market.git/internal/kafka"
	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/ariefcatur/go-digital-market.git/internal/postgres"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

// Sweeper TTL reservasi: jaring pengaman kalau payment gateway tidak pernah
// mengirim expired. Order pending_payment yang lewat TTL dilepas stoknya.
func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()

	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCancelled, 256)
	pCancel.Start(ctx)

	orders := &market.OrderRepo{DB: db}
	engine := &market.FulfillmentRepo{DB: db}
	service := cfg.ServiceName + "-expirer"

	go func() {
		t := time.NewTicker(cfg.ExpirerInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sweep(ctx, orders, engine, pCancel, service, cfg)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down expirer...")
	cancel()
	pCancel.Close()
	pCancel.WaitClosed()
}

func sweep(ctx context.Context, orders *market.OrderRepo, engine *market.FulfillmentRepo, p *kafkax.Producer, service string, cfg config.Config) {
	ids, err := orders.ListExpiredPending(ctx, cfg.ReservationTTL, cfg.ExpirerBatch)
	if err != nil {
		log.Error().Err(err).Msg("list expired")
		return
	}
	for _, id := range ids {
		o, err := engine.Release(ctx, id, market.OrderCancelled, market.PaymentCancelled)
		if errors.Is(err, market.ErrWrongState) {
			continue // keburu dibayar/dibatalkan di antara list dan release
		}
		if err != nil {
			log.Error().Err(err).Str("order_id", id).Msg("release expired")
			continue
		}
		ev := market.Envelope{
			EventID:       uuid.NewString(),
			EventType:     market.EventOrderCancelled,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      service,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(market.OrderCancelledPayload{
				OrderID: o.ID, FinalStatus: o.Status, Reason: "RESERVATION_EXPIRED",
			}),
		}
		p.Publish(market.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(market.EventOrderCancelled)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
		log.Info().Str("order_id", o.ID).Msg("expired reservation released")
	}
}
