package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-digital-market.git/internal/config"
	kafkax "github.com/ariefcatur/go-digital-market.git/internal/kafka"
	"github.com/ariefcatur/go-digital-market.git/internal/market"
	"github.com/ariefcatur/go-digital-market.git/internal/payments"
	"github.com/ariefcatur/go-digital-market.git/internal/postgres"
	"github.com/ariefcatur/go-digital-market.git/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: completed & cancelled (dua topic berbeda)
	pDone := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCompleted, 1024)
	pDone.Start(ctx)
	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCancelled, 1024)
	pCancel.Start(ctx)

	// Service
	svc := &payments.Service{
		Repo:              &market.FulfillmentRepo{DB: db},
		Redis:             rdb,
		ProducerCompleted: pDone,
		ProducerCancelled: pCancel,
		ServiceName:       cfg.ServiceName + "-payments",
	}

	// Satu consumer per topic payment, handler sama (switch di event type)
	topics := []string{market.TopicPaymentConfirmed, market.TopicPaymentFailed, market.TopicPaymentExpired}
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentGroup, topic, cfg.PaymentWorkers)
		go func(topic string) {
			log.Info().Str("group", cfg.PaymentGroup).Str("topic", topic).Int("workers", cfg.PaymentWorkers).
				Msg("payments consumer started")
			if err := cons.Start(ctx, svc.HandlePaymentEvent); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("consumer exit")
				cancel()
			}
		}(topic)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down consumers...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pDone.Close()
	pCancel.Close()
	pDone.WaitClosed()
	pCancel.WaitClosed()
}
