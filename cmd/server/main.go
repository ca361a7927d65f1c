package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slot-calendar/internal/booking"
	"github.com/iliyamo/slot-calendar/internal/calendar"
	"github.com/iliyamo/slot-calendar/internal/config"
	"github.com/iliyamo/slot-calendar/internal/database"
	"github.com/iliyamo/slot-calendar/internal/handler"
	"github.com/iliyamo/slot-calendar/internal/ledger"
	"github.com/iliyamo/slot-calendar/internal/middleware"
	"github.com/iliyamo/slot-calendar/internal/queue"
	"github.com/iliyamo/slot-calendar/internal/repository"
	"github.com/iliyamo/slot-calendar/internal/router"
	"github.com/iliyamo/slot-calendar/internal/service"
	"github.com/iliyamo/slot-calendar/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := newLogger(cfg.LogLevel)

	db, err := database.Connect(database.Options{
		Driver:     cfg.DBDriver,
		User:       cfg.DBUser,
		Pass:       cfg.DBPass,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; response cache disabled, rate limiting in-process")
	} else {
		defer rdb.Close()
	}

	dialect := repository.Dialect(cfg.DBDriver)
	counters := repository.NewSlotCounterRepo(db, dialect)
	reservations := repository.NewReservationRepo(db, dialect)
	history := repository.NewHistoryRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	var events booking.EventPublisher
	if cfg.EventsEnabled {
		pub := service.NewEventPublisher(cfg.RabbitMQURL, log)
		defer pub.Close()
		events = pub
	}
	bookings := booking.NewService(
		repository.NewTxStore(db, counters, reservations, history),
		repository.Reader{ReservationRepo: reservations, History: history},
		events,
		booking.WithMaxRetries(cfg.TxMaxRetries),
		booking.WithLogger(log.WithField("component", "booking")),
	)
	ledgerSvc := ledger.NewService(counters, cfg.SlotDefaultCapacity, log)
	calendarSvc := calendar.NewService(reservations, counters)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterReservations(e,
		handler.NewReservationHandler(bookings),
		handler.NewCalendarHandler(calendarSvc),
		cfg.JWTSecret, cfg.Cache, rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(bookings, ledgerSvc, users, tokens), cfg.JWTSecret, cfg.Cache, rdb)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewLedgerAuditWorker(ledgerSvc, cfg.LedgerAuditInterval, cfg.LedgerAuditDays, cfg.LedgerAutoRepair).Start(ctx)
	}()
	if cfg.EventsEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.NewConsumer(cfg.RabbitMQURL, cfg.LogDir, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("reservation consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "db": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	wg.Wait()
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(lvl)
	return log
}
