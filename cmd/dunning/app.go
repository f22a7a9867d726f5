package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"dunning/internal/calls"
	"dunning/internal/compliance"
	jwttoken "dunning/internal/jwt_token"
	"dunning/internal/outreach"
	"dunning/internal/platform/config"
	"dunning/internal/platform/kafka"
	"dunning/internal/platform/logger"
	"dunning/internal/platform/metrics"
	"dunning/internal/platform/postgres"
	platformredis "dunning/internal/platform/redis"
	"dunning/internal/providers/calendar"
	"dunning/internal/providers/sms"
	"dunning/internal/providers/voice"
	"dunning/internal/providers/voice/retell"
	"dunning/internal/providers/voice/vapi"
	"dunning/internal/records"
	"dunning/internal/residents"
	"dunning/internal/residents/importer"
	"dunning/internal/scheduling"
	"dunning/internal/scheduling/lock"
	"dunning/internal/verification"
	"dunning/internal/webhook"
	"dunning/internal/webhook/hook"
	"dunning/pkg/platform/audit"
	"dunning/pkg/platform/audit/publisher"
	auditmemory "dunning/pkg/platform/audit/store/memory"
	auditpostgres "dunning/pkg/platform/audit/store/postgres"
	"dunning/pkg/platform/phi"
	"dunning/pkg/platform/tx"
)

// operatorAudience is the JWT audience of operator tokens.
const operatorAudience = "dunning-operators"

// recordStore is everything the services need from the records package.
type recordStore interface {
	calls.Store
	outreach.Store
	scheduling.Store
	webhook.Store
	residents.Store
	importer.Store
	verification.ResidentStore
}

// app owns every long-lived dependency of one process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db      *sql.DB
	redis   *platformredis.Client
	kafka   *kgo.Client
	store   recordStore
	txr     importer.TxRunner
	auditor *publisher.Publisher

	gate   *compliance.Gate
	sealer *phi.Sealer
	voice  voice.Provider

	closers []io.Closer
}

// newApp loads configuration and connects the backing services. Stores fall
// back to memory when DATABASE_URL is empty.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)

	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, logCloser)
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	var auditStore audit.Store
	if cfg.Database.URL != "" {
		a.db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = records.NewPostgres(a.db)
		a.txr = tx.NewRunner(a.db, cfg.Database.TxTimeout)
		auditStore = auditpostgres.New(a.db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		a.store = records.NewMemory()
		a.txr = tx.NoopRunner{}
		auditStore = auditmemory.NewInMemoryStore()
	}
	a.auditor = publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))

	if a.gate, err = newGate(cfg.Compliance); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Security.PHIKey != "" {
		if a.sealer, err = phi.NewSealer(cfg.Security.PHIKey); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Warn("PHI_ENCRYPTION_KEY not set, protected fields will not be stored")
	}
	if a.voice, err = newVoiceProvider(cfg.Voice); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// connectBrokers opens the optional Redis and Kafka clients used by serve.
func (a *app) connectBrokers(ctx context.Context) error {
	var err error
	if a.redis, err = platformredis.New(ctx, a.cfg.Redis); err != nil {
		return err
	}
	if a.redis == nil {
		a.logger.Info("REDIS_URL not set, bookings are serialized in-process")
	}
	if a.kafka, err = kafka.NewClient(a.cfg.Kafka); err != nil {
		return err
	}
	if a.kafka != nil {
		if err := kafka.EnsureTopic(ctx, a.kafka, a.cfg.Kafka.Topic, 3); err != nil {
			a.logger.Warn("could not ensure call events topic", "topic", a.cfg.Kafka.Topic, "error", err)
		}
	}
	return nil
}

func newGate(cfg config.ComplianceConfig) (*compliance.Gate, error) {
	fixed, err := compliance.NewFixedZone(cfg.Zone)
	if err != nil {
		return nil, err
	}
	var resolver compliance.ZoneResolver = fixed
	if cfg.ResolveByAreaCode {
		fallback, err := time.LoadLocation(cfg.Zone)
		if err != nil {
			return nil, err
		}
		if resolver, err = compliance.NewAreaCodeResolver(fallback); err != nil {
			return nil, err
		}
	}
	return compliance.New(resolver, compliance.WithWindow(cfg.StartHour, cfg.EndHour)), nil
}

func newVoiceProvider(cfg config.VoiceConfig) (voice.Provider, error) {
	reg := voice.NewRegistry()
	for _, p := range []voice.Provider{
		vapi.New(cfg.Vapi, cfg.RequestTimeout),
		retell.New(cfg.Retell, cfg.RequestTimeout),
	} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	p, ok := reg.Get(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown voice provider %q, available: %v", cfg.Provider, reg.Names())
	}
	return p, nil
}

func (a *app) orchestrator() *calls.Orchestrator {
	return calls.New(a.voice, a.store, a.gate,
		calls.WithAuditor(a.auditor),
		calls.WithMetrics(a.metrics),
		calls.WithLogger(a.logger),
		calls.WithPollWait(a.cfg.Voice.PollWait),
	)
}

func (a *app) outreachService() *outreach.Service {
	opts := []outreach.Option{
		outreach.WithAuditor(a.auditor),
		outreach.WithMetrics(a.metrics),
		outreach.WithLogger(a.logger),
	}
	if a.sealer != nil {
		opts = append(opts, outreach.WithSealer(a.sealer))
	}
	return outreach.NewService(a.store, sms.NewTwilio(a.cfg.SMS, a.cfg.Voice.RequestTimeout), a.gate, a.cfg.Outreach, opts...)
}

func (a *app) schedulingService() *scheduling.Service {
	var locker lock.Locker = lock.NewLocal(0)
	if a.redis != nil {
		locker = lock.NewRedis(a.redis.Client, a.cfg.Redis.LockTTL, lock.WithLogger(a.logger))
	}
	return scheduling.NewService(calendar.NewGoogle(a.cfg.Calendar, a.cfg.Voice.RequestTimeout), a.store, a.gate,
		scheduling.WithAuditor(a.auditor),
		scheduling.WithMetrics(a.metrics),
		scheduling.WithLogger(a.logger),
		scheduling.WithLocker(locker),
	)
}

func (a *app) webhookService(orch *calls.Orchestrator) *webhook.Service {
	hooks := []webhook.Hook{hook.NewCallLog(orch)}
	if a.kafka != nil {
		hooks = append(hooks, hook.NewKafkaHook(a.kafka, a.cfg.Kafka.Topic))
	} else {
		hooks = append(hooks, hook.Noop{})
	}
	opts := []webhook.Option{
		webhook.WithHooks(hooks...),
		webhook.WithCallLogs(a.store),
		webhook.WithAuditor(a.auditor),
		webhook.WithMetrics(a.metrics),
		webhook.WithLogger(a.logger),
	}
	if a.sealer != nil {
		opts = append(opts, webhook.WithSealer(a.sealer))
	}
	return webhook.NewService(a.store, opts...)
}

func (a *app) verificationService() *verification.Service {
	return verification.NewService(a.store,
		verification.WithAuditor(a.auditor),
		verification.WithMetrics(a.metrics),
		verification.WithLogger(a.logger),
	)
}

func (a *app) jwtService() *jwttoken.JWTService {
	if a.cfg.Security.JWTSigningKey == "" {
		return nil
	}
	return jwttoken.NewJWTService(a.cfg.Security.JWTSigningKey, a.cfg.Security.JWTIssuer, operatorAudience)
}

// ready pings every configured backing service.
func (a *app) ready(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.kafka != nil {
		if err := kafka.Health(ctx, a.kafka); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) webhookRejected(r *http.Request) {
	if err := a.auditor.Emit(r.Context(), audit.Event{
		Action: string(audit.EventWebhookRejected),
		Reason: r.URL.Path,
	}); err != nil {
		a.logger.WarnContext(r.Context(), "failed to emit webhook rejection", "error", err)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	if a.auditor != nil {
		a.auditor.Close()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}
