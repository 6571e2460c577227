package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"golang.org/x/sync/errgroup"

	"carecheck/internal/candidate"
	httpapi "carecheck/internal/http"
	jwttoken "carecheck/internal/jwt_token"
	"carecheck/internal/platform/config"
	"carecheck/internal/platform/httpserver"
	kafkaadmin "carecheck/internal/platform/kafka/admin"
	"carecheck/internal/platform/kafka/consumer"
	"carecheck/internal/platform/kafka/producer"
	"carecheck/internal/platform/logger"
	platformmetrics "carecheck/internal/platform/metrics"
	"carecheck/internal/platform/postgres"
	platformredis "carecheck/internal/platform/redis"
	"carecheck/internal/ratelimit"
	"carecheck/internal/verification/documents"
	"carecheck/internal/verification/events"
	"carecheck/internal/verification/extraction"
	"carecheck/internal/verification/handler"
	"carecheck/internal/verification/metrics"
	"carecheck/internal/verification/notify"
	"carecheck/internal/verification/phaselock"
	"carecheck/internal/verification/pipeline"
	"carecheck/internal/verification/ports"
	"carecheck/internal/verification/service"
	"carecheck/internal/verification/store"
	audit "carecheck/pkg/platform/audit"
	auditconsumer "carecheck/pkg/platform/audit/consumer"
	auditoutbox "carecheck/pkg/platform/audit/outbox"
	auditpublisher "carecheck/pkg/platform/audit/publisher"
	auditmemory "carecheck/pkg/platform/audit/store/memory"
	auditpostgres "carecheck/pkg/platform/audit/store/postgres"
	"carecheck/pkg/platform/circuit"
)

// main wires adapters from configuration, then runs the HTTP server and the
// background workers until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("carecheck stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("carecheck stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	reg := platformmetrics.NewRegistry()
	m := metrics.New(reg)

	auditStore, relay := auditBackend(cfg, infra, log)
	auditor := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(1024),
		auditpublisher.WithLogger(log),
	)
	defer auditor.Close()

	var (
		records   ports.RecordStore          = store.NewInMemoryStore()
		notifyLog ports.NotificationLog      = store.NewInMemoryNotificationLog()
		levels    ports.CandidateLevelWriter = candidate.NewInMemoryLevelStore()
	)
	if infra.db != nil {
		records = store.NewPostgres(infra.db)
		notifyLog = store.NewPostgresNotificationLog(infra.db)
		levels = candidate.NewPostgresLevelStore(infra.db)
	}

	docs, sender, err := awsAdapters(ctx, cfg)
	if err != nil {
		return err
	}

	var extractor ports.Extractor = extraction.NewFake()
	if cfg.Extraction.URL != "" {
		extractor = extraction.NewClient(cfg.Extraction.URL, cfg.Extraction.Timeout,
			extraction.WithBreaker(circuit.New("extraction")),
			extraction.WithLogger(log),
		)
	} else {
		log.Warn("EXTRACTION_URL not set; using the fake extractor")
	}

	var (
		lock    ports.PhaseLock       = phaselock.NewLocalLock()
		buckets ratelimit.BucketStore = ratelimit.NewInMemoryBucketStore()
	)
	if infra.redis != nil {
		lock = phaselock.NewRedisLock(infra.redis.Client, log)
		buckets = ratelimit.NewRedisBucketStore(infra.redis.Client)
	}
	limiter := ratelimit.NewMiddleware(buckets, map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassCandidate: {Requests: cfg.RateLimit.CandidatePerMinute, Window: time.Minute},
		ratelimit.ClassInbound:   {Requests: cfg.RateLimit.InboundPerMinute, Window: time.Minute},
	}, log)

	var (
		bus      events.Publisher
		localBus *events.LocalBus
	)
	if infra.producer != nil {
		bus = events.NewKafkaPublisher(infra.producer, cfg.Kafka.PhaseTopic)
	} else {
		localBus = events.NewLocalBus(256, cfg.Pipeline.Workers, log)
		bus = localBus
	}

	orchestrator := pipeline.New(records, extractor, docs, bus,
		pipeline.WithPhaseLock(lock, cfg.Pipeline.LockTTL),
		pipeline.WithAuditor(auditor),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
		pipeline.WithPhaseTimeout(cfg.Pipeline.PhaseTimeout),
	)
	dispatcher := pipeline.NewDispatcher(orchestrator, log)

	svc := service.New(records, orchestrator,
		service.WithLevelWriter(levels),
		service.WithAuditor(auditor),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithStaleAfter(cfg.Pipeline.StaleAfter),
	)

	var notifier ports.Notifier = notify.NewLogNotifier(log)
	if sender != nil {
		notifier = notify.NewSESNotifier(sender, cfg.Notify.FromAddress)
	}
	sweeper := notify.NewSweeper(records, notifyLog, notifier,
		notify.WithAuditor(auditor),
		notify.WithMetrics(m),
		notify.WithLogger(log),
	)
	scheduler := notify.NewScheduler(log, cfg.Pipeline.PhaseTimeout)
	if err := scheduler.Add(ctx, "failure_notifications", cfg.Notify.Schedule, sweeper.Run); err != nil {
		return err
	}
	if err := scheduler.Add(ctx, "follow_up_redrive", cfg.Notify.FollowUpSchedule, orchestrator.RedriveFollowUps); err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Config{
		Validator:     jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)),
		AdminAPIToken: cfg.AdminAPIToken,
		Metrics:       platformmetrics.Handler(reg),
		Ready:         infra.readiness(),
		RateLimit:     limiter,
		Logger:        log,
	}, handler.New(svc, log))
	srv := httpserver.New(cfg.Addr, router, cfg.Pipeline.PhaseTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting carecheck", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return scheduler.Run(gctx) })

	if localBus != nil {
		g.Go(func() error { return localBus.Run(gctx, dispatcher) })
	} else {
		phases, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
			[]string{cfg.Kafka.PhaseTopic}, events.NewKafkaHandler(dispatcher, log), log)
		if err != nil {
			return err
		}
		g.Go(func() error { return phases.Run(gctx) })
	}

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	if infra.producer != nil && infra.db != nil {
		materialiser, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup+"-audit",
			[]string{cfg.Kafka.AuditTopic}, auditconsumer.NewHandler(auditpostgres.New(infra.db), log), log)
		if err != nil {
			return err
		}
		g.Go(func() error { return materialiser.Run(gctx) })
	}

	return g.Wait()
}

type infrastructure struct {
	db       *sql.DB
	redis    *platformredis.Client
	producer *producer.Producer
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	infra.db = db
	if db == nil {
		log.Warn("DATABASE_URL not set; records are kept in memory")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		infra.close()
		return nil, err
	}
	infra.redis = rc

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafkaadmin.EnsureTopics(ctx, cfg.Kafka.Brokers,
			kafkaadmin.TopicSpec{Name: cfg.Kafka.PhaseTopic, Partitions: 6, ReplicationFactor: 1},
			kafkaadmin.TopicSpec{Name: cfg.Kafka.AuditTopic, Partitions: 3, ReplicationFactor: 1},
		); err != nil {
			infra.close()
			return nil, err
		}
		p, err := producer.New(cfg.Kafka.Brokers, log)
		if err != nil {
			infra.close()
			return nil, err
		}
		infra.producer = p
	}
	return infra, nil
}

func (i *infrastructure) readiness() map[string]httpapi.ReadinessCheck {
	checks := map[string]httpapi.ReadinessCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.producer != nil {
		checks["kafka"] = i.producer.Health
	}
	return checks
}

func (i *infrastructure) close() {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// auditBackend picks where audit events land. With Postgres they go through
// the outbox; the relay ships them to Kafka when brokers are configured and
// otherwise materialises them straight into audit_events.
func auditBackend(cfg config.Server, infra *infrastructure, log *slog.Logger) (audit.Store, *auditoutbox.Relay) {
	if infra.db == nil {
		return auditmemory.NewInMemoryStore(), nil
	}
	outbox := auditpostgres.New(infra.db)
	var target auditoutbox.Publisher = directMaterialiser{handler: auditconsumer.NewHandler(outbox, log)}
	if infra.producer != nil {
		target = infra.producer
	}
	return outbox, auditoutbox.New(outbox, target, cfg.Kafka.AuditTopic, log)
}

// directMaterialiser feeds relayed outbox rows to the audit consumer in-process.
type directMaterialiser struct {
	handler *auditconsumer.Handler
}

func (d directMaterialiser) Publish(ctx context.Context, msg producer.Message) error {
	return d.handler.Handle(ctx, &consumer.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: msg.Headers,
	})
}

// awsAdapters returns the S3 document source and SES sender when configured,
// falling back to the in-memory source and a nil sender.
func awsAdapters(ctx context.Context, cfg config.Server) (ports.DocumentSource, notify.EmailSender, error) {
	if cfg.AWS.DocumentBucket == "" && cfg.Notify.FromAddress == "" {
		return documents.NewMemorySource(), nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, err
	}
	var docs ports.DocumentSource = documents.NewMemorySource()
	if cfg.AWS.DocumentBucket != "" {
		docs = documents.NewS3Source(s3.NewFromConfig(awsCfg), cfg.AWS.DocumentBucket)
	}
	var sender notify.EmailSender
	if cfg.Notify.FromAddress != "" {
		sender = sesv2.NewFromConfig(awsCfg)
	}
	return docs, sender, nil
}
