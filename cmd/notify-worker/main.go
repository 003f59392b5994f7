package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/config"
	"github.com/medisched/hospital-booking/internal/db"
	"github.com/medisched/hospital-booking/internal/events"
	"github.com/medisched/hospital-booking/internal/notify"
	redisclient "github.com/medisched/hospital-booking/internal/redis"
	"github.com/medisched/hospital-booking/internal/scheduling"
)

// notify-worker tails the booking event stream and runs the best-effort
// side effects: confirmation emails and calendar mirroring. It can lag or
// crash without affecting bookings.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	log.Info("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warnf("error closing redis: %v", err)
		}
	}()
	log.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)

	var notifier notify.Notifier
	if cfg.EmailServiceURL != "" {
		notifier = notify.NewEmailServiceNotifier(cfg.EmailServiceURL)
		log.WithField("url", cfg.EmailServiceURL).Info("email service configured")
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Info("no email service configured, logging notifications")
	}

	var mirror notify.Mirror
	if cfg.CalendarServiceURL != "" {
		mirror = notify.NewHTTPMirror(cfg.CalendarServiceURL)
		log.WithField("url", cfg.CalendarServiceURL).Info("calendar mirror configured")
	}

	dispatcher := notify.NewDispatcher(repo, notifier, mirror, log)
	consumer := events.NewStreamConsumer(rdb, cfg.EventStream, 5*time.Second)

	log.WithField("stream", cfg.EventStream).Info("consuming booking events")

	for {
		if rootCtx.Err() != nil {
			log.Info("shutdown signal received, stopping notify-worker")
			return
		}

		msgs, err := consumer.Read(rootCtx)
		if err != nil {
			if rootCtx.Err() != nil {
				log.Info("shutdown signal received, stopping notify-worker")
				return
			}
			log.WithError(err).Warn("event read error")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			ev, err := events.DecodeBookingCreated(msg)
			if err != nil {
				log.WithError(err).WithField("message_id", msg.ID).Warn("skipping undecodable event")
				continue
			}

			handleCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
			dispatcher.HandleBookingCreated(handleCtx, ev)
			cancel()
		}
	}
}
