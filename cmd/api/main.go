package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crescoflow/internal/adapters/storage"
	"crescoflow/internal/auth"
	"crescoflow/internal/email"
	"crescoflow/internal/events"
	"crescoflow/internal/exports"
	"crescoflow/internal/ghl"
	apphttp "crescoflow/internal/http"
	"crescoflow/internal/http/router"
	"crescoflow/internal/instantly"
	"crescoflow/internal/leadenrichment"
	"crescoflow/internal/leads"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leadstore"
	"crescoflow/internal/notification"
	"crescoflow/internal/outbound"
	"crescoflow/internal/pipeline"
	"crescoflow/internal/prospecting"
	"crescoflow/internal/scheduler"
	"crescoflow/internal/sms"
	"crescoflow/internal/templates"
	"crescoflow/platform/config"
	"crescoflow/platform/db"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		_, err := db.RunMigrations(ctx, pool)
		return err
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	state := leadstore.New(leadstore.NewPostgresRepository(pool), log.WithComponent("leadstore"))
	if err := state.Init(ctx); err != nil {
		log.Error("failed to load pipeline state", "error", err)
		panic("failed to load pipeline state: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)

	library, err := templates.Load(cfg.GetTemplatesPath())
	if err != nil {
		log.Error("failed to load message templates", "error", err)
		panic("failed to load message templates: " + err.Error())
	}

	// ========================================================================
	// Integrations (each optional)
	// ========================================================================

	ghlClient := ghl.NewClient(cfg, log)
	instantlyClient := instantly.NewClient(cfg, log)
	smsClient := sms.NewClient(cfg, log)
	smtpSender := email.NewSMTPSender(cfg, log)

	var (
		smsRoute  sms.Gateway
		crmRoute  sms.Conversations
		inboxSync instantly.ContactSyncer
	)
	if ghlClient != nil {
		crmRoute = ghlClient
		inboxSync = ghlClient
	}
	if smsClient != nil {
		smsRoute = smsClient
	}

	senders := map[domain.Channel]outbound.Sender{}
	if s := sms.NewSender(smsRoute, crmRoute); s != nil {
		senders[domain.ChannelColdSMS] = s
	}
	if smtpSender != nil {
		senders[domain.ChannelColdEmail] = smtpSender
	}

	var taskClient *scheduler.Client
	if cfg.GetRedisURL() != "" {
		taskClient, err = scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task client", "error", err)
			panic("failed to initialize task client: " + err.Error())
		}
		defer func() {
			_ = taskClient.Close()
		}()
	} else {
		log.Warn("REDIS_URL not configured; running sweeps in-process")
	}

	var publisher *exports.Publisher
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "lead-exports", cfg.GetMinioBucketExports())
		publisher = exports.NewPublisher(storageSvc, cfg.GetMinioBucketExports())
		log.Info("storage service initialized", "exportsBucket", cfg.GetMinioBucketExports())
	}

	enrichment, err := leadenrichment.NewModule(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize lead enrichment", "error", err)
		panic("failed to initialize lead enrichment: " + err.Error())
	}
	var loop *prospecting.Loop
	if enrichment != nil {
		loop = prospecting.NewLoop(enrichment.Service(), enrichment.Service(), state, eventBus, log,
			prospecting.WithCooldowns(cfg.GetDiscoveryCooldown(), cfg.GetEnrichmentCooldown()))
	} else {
		log.Warn("GEMINI_API_KEY not configured; prospecting disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadDeps := leads.Deps{Store: state, Bus: eventBus, Validator: val, Log: log.WithComponent("leads")}
	if loop != nil {
		leadDeps.Enrichment = loop
	}
	if ghlClient != nil {
		leadDeps.Contacts = ghlClient
		leadDeps.CRM = ghlClient
	}
	if taskClient != nil {
		leadDeps.SyncQueue = taskClient
	}
	if publisher != nil {
		leadDeps.Publisher = publisher
	}
	leadsModule, err := leads.NewModule(leadDeps)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	dispatcher := outbound.NewDispatcher(state, senders, eventBus, log.WithComponent("dispatch"),
		outbound.WithSpacing(cfg.GetDispatchSpacing()),
		outbound.WithMaxRetries(cfg.GetDispatchMaxRetries()),
		outbound.WithRetryHorizon(cfg.GetScheduleHorizonDays()),
	)
	stager := outbound.NewStager(state, library, log.WithComponent("stager"), cfg.GetScheduleHorizonDays())

	outboundDeps := outbound.HandlerDeps{
		Store:      state,
		Stager:     stager,
		Dispatcher: dispatcher,
		Validator:  val,
		Log:        log.WithComponent("outbound"),
	}
	var inbox *instantly.InboxChecker
	if instantlyClient != nil {
		inbox = instantly.NewInboxChecker(instantlyClient, inboxSync, state, eventBus, log.WithComponent("inbox"))
		outboundDeps.Inbox = inbox
		outboundDeps.Campaigns = outbound.NewCampaigns(instantlyClient, state, log.WithComponent("campaigns"))
	}
	if taskClient != nil {
		outboundDeps.Queue = taskClient
	}
	outboundModule, err := outbound.NewModule(outboundDeps)
	if err != nil {
		log.Error("failed to initialize outbound module", "error", err)
		panic("failed to initialize outbound module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			auth.NewModule(cfg, val, log),
			leadsModule,
			pipeline.NewModule(leadsModule.Sweeper()),
			outboundModule,
			prospecting.NewModule(loop, state, val),
			templates.NewModule(library),
			notificationModule,
		},
	}
	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ========================================================================
	// Background Workers
	// ========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if loop != nil {
		g.Go(func() error {
			if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("prospecting loop: %w", err)
			}
			return nil
		})
	}

	jobs := scheduler.Jobs{Sweeper: leadsModule.Sweeper(), Dispatcher: dispatcher, Syncer: leadsModule.Sync()}
	if inbox != nil {
		jobs.Inbox = inbox
	}
	if taskClient != nil {
		worker, err := scheduler.NewWorker(cfg, jobs, log)
		if err != nil {
			log.Error("failed to initialize task worker", "error", err)
			panic("failed to initialize task worker: " + err.Error())
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	} else {
		ticker := scheduler.NewTicker(jobs.Sweeper, jobs.Inbox, log, 0, 0)
		g.Go(func() error {
			ticker.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	outboundModule.Wait()
	eventBus.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := state.Flush(flushCtx); err != nil {
		log.Error("failed to flush pipeline state", "error", err)
	}
	log.Info("server stopped")
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
