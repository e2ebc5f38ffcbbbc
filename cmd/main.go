package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gitlab.com/effect-network.net/internal/adapter/amqp"
	"gitlab.com/effect-network.net/internal/adapter/crypto"
	"gitlab.com/effect-network.net/internal/adapter/datastore/memory"
	"gitlab.com/effect-network.net/internal/adapter/datastore/mongostore"
	"gitlab.com/effect-network.net/internal/adapter/datastore/sqlstore"
	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/adapter/metrics"
	"gitlab.com/effect-network.net/internal/adapter/prover"
	redisqueue "gitlab.com/effect-network.net/internal/adapter/redis/workerqueue"
	"gitlab.com/effect-network.net/internal/adapter/workerqueue"
	"gitlab.com/effect-network.net/internal/config"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/events"
	"gitlab.com/effect-network.net/internal/core/services/payment"
	"gitlab.com/effect-network.net/internal/core/services/session"
	"gitlab.com/effect-network.net/internal/core/services/task"
	"gitlab.com/effect-network.net/internal/core/services/template"
	"gitlab.com/effect-network.net/internal/core/services/workertask"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/entity"
	"gitlab.com/effect-network.net/internal/handlers"
	eventshub "gitlab.com/effect-network.net/internal/handlers/events"
	"gitlab.com/effect-network.net/internal/handlers/payments"
	"gitlab.com/effect-network.net/internal/handlers/tasks"
	"gitlab.com/effect-network.net/internal/handlers/templates"
	"gitlab.com/effect-network.net/internal/handlers/workers"
	http2 "gitlab.com/effect-network.net/internal/http"
	"gitlab.com/effect-network.net/internal/schedulerengine"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/tcp"
	"gitlab.com/effect-network.net/internal/tcp/defs"
)

const usage = "usage: effectd manager|worker|token [-env dev] [-seed tasks.yaml]"

func main() {
	// the role argument may be omitted in favour of ROLE
	role, args := "", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		role, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("effectd", flag.ExitOnError)
	env := fs.String("env", "", "load <env>.env before reading the configuration")
	seed := fs.String("seed", "", "YAML file with templates and tasks to create on start (manager)")
	_ = fs.Parse(args)
	InitReader(*env)

	sysCfg := config.NewSystemConfig()
	if role == "" {
		role = sysCfg.Role
	}
	logger := logging.NewZapLogger(sysCfg.LogLevel)
	defer logger.Sync()

	switch role {
	case "token":
		printToken(sysCfg)
		return
	case string(domain.RoleManager), string(domain.RoleWorker):
	default:
		log.Fatal(usage)
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signer, err := setupSigner(sysCfg.NodeConfig, logger)
	if err != nil {
		logger.Error("Failed to load signing key", "error", err)
		os.Exit(1)
	}
	logger = logger.With("role", role, "peer", signer.PeerID())
	logger.Info("Starting effect node")

	ds, err := setupDatastore(ctx, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up datastore", "error", err)
		os.Exit(1)
	}
	defer ds.Close()

	// event sinks
	bus := events.NewBus(logger.Named("events"))
	hub := eventshub.NewHub(logger.Named("ws"))
	bus.Subscribe(events.AllEvents, hub.Handle)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(registry, logger)
	if err != nil {
		logger.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}
	bus.Subscribe(events.AllEvents, collector.CountEvent)

	if sysCfg.AmqpConfig.Url != "" {
		publisher, err := amqp.NewPublisher(sysCfg.AmqpConfig.Url, sysCfg.AmqpConfig.Exchange, logger.Named("amqp"))
		if err != nil {
			logger.Error("Failed to connect to amqp", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		bus.Subscribe(events.AllEvents, publisher.Handle)
	}

	transport := tcp.NewTCPServer(signer.PeerID(), logger.Named("tcp"), tcp.WithAddress(sysCfg.NodeConfig.ListenAddr))

	var (
		routes []http2.Routes
		jobs   []schedulerengine.Job
	)
	if role == string(domain.RoleManager) {
		queue, err := setupQueue(ctx, sysCfg.RedisConfig, logger)
		if err != nil {
			logger.Error("Failed to set up worker queue", "error", err)
			os.Exit(1)
		}
		if err := collector.WatchQueue(queue); err != nil {
			logger.Error("Failed to register queue gauge", "error", err)
		}

		sessions := session.NewService(entity.ManagerSession(signer.PublicKey()), transport, logger.Named("session"), sysCfg.SessionSvcCfg)
		ent := entity.New(domain.RoleManager, transport, sessions, collector, logger)
		transport.Bind(ent.HandleFrame, ent.HandleConnect, ent.HandleDisconnect)

		orch := task.NewOrchestrator(task.NewStore(ds, task.ManagerNamespace), queue, ent, bus, logger.Named("tasks"), sysCfg.TaskSvcCfg)
		paymentMgr := payment.NewManager(payment.NewStore(ds, payment.ManagerNamespace), orch, sessions, signer,
			prover.NewDigestBackend(), ent, bus, logger.Named("payments"), sysCfg.NodeConfig.PaymentAccount)
		tplSvc := template.NewService(ds, ent, logger.Named("templates"))

		mgr, err := entity.NewManager(ent, entity.ManagerServices{
			Tasks:     orch,
			Payments:  paymentMgr,
			Templates: tplSvc,
			Queue:     queue,
			PublicKey: signer.PublicKey(),
		})
		if err != nil {
			logger.Error("Failed to set up manager", "error", err)
			os.Exit(1)
		}

		if *seed != "" {
			if err := seedTasks(ctx, *seed, sysCfg.NodeConfig.TokenDecimals, orch, tplSvc); err != nil {
				logger.Error("Failed to seed tasks", "file", *seed, "error", err)
				os.Exit(1)
			}
		}

		decimals := sysCfg.NodeConfig.TokenDecimals
		routes = append(routes,
			func(r *mux.Router) { tasks.NewManagerHandler(orch, decimals, logger).RegisterRoutes(r) },
			func(r *mux.Router) { templates.NewHandler(tplSvc, logger).RegisterRoutes(r, true) },
			func(r *mux.Router) { workers.NewHandler(sessions, mgr, logger).RegisterRoutes(r) },
			func(r *mux.Router) { payments.NewManagerHandler(paymentMgr, logger).RegisterRoutes(r) },
		)
		jobs = append(jobs, schedulerengine.Job{
			Name:     "assign",
			Interval: sysCfg.TaskSvcCfg.AssignInterval,
			Run: func(ctx context.Context) error {
				_, err := orch.Tick(ctx)
				return err
			},
		})
	} else {
		id := signer.PeerID()
		recipient := sysCfg.NodeConfig.Recipient
		if recipient == "" {
			recipient = id
		}

		var wallet *payment.Wallet
		sessions := session.NewService(entity.WorkerSession(id, recipient, func(ctx context.Context, m string) (uint64, error) {
			return wallet.HighestNonce(ctx, m)
		}), transport, logger.Named("session"), sysCfg.SessionSvcCfg)
		ent := entity.New(domain.RoleWorker, transport, sessions, collector, logger)
		transport.Bind(ent.HandleFrame, ent.HandleConnect, ent.HandleDisconnect)

		wallet = payment.NewWallet(id, recipient, ds, sessions, prover.NewDigestBackend(), ent, bus, logger.Named("wallet"))
		taskSvc := workertask.NewService(id, task.NewStore(ds, task.WorkerNamespace), ent, bus, logger.Named("tasks"))
		tplSvc := template.NewService(ds, ent, logger.Named("templates"))

		wrk, err := entity.NewWorker(ent, entity.WorkerServices{
			Tasks:     taskSvc,
			Wallet:    wallet,
			Templates: tplSvc,
		})
		if err != nil {
			logger.Error("Failed to set up worker", "error", err)
			os.Exit(1)
		}

		routes = append(routes,
			func(r *mux.Router) { tasks.NewWorkerHandler(taskSvc, logger).RegisterRoutes(r) },
			func(r *mux.Router) { templates.NewHandler(tplSvc, logger).RegisterRoutes(r, false) },
			func(r *mux.Router) { payments.NewWalletHandler(wallet, wrk, logger).RegisterRoutes(r) },
		)
		if addr := sysCfg.NodeConfig.ManagerAddr; addr != "" {
			jobs = append(jobs, schedulerengine.Job{
				Name:     "connect",
				Interval: defs.ConnectionRetryDelay,
				Run: func(ctx context.Context) error {
					if len(wrk.Managers()) > 0 || len(transport.Peers()) > 0 {
						return nil
					}
					dialCtx, cancel := context.WithTimeout(ctx, defs.DialTimeout)
					defer cancel()
					peer, err := wrk.Connect(dialCtx, addr)
					if err != nil {
						return fmt.Errorf("connect to manager %s: %w", addr, err)
					}
					logger.Info("Connected to manager", "manager", peer, "addr", addr)
					return nil
				},
			})
		}
		jobs = append(jobs, schedulerengine.Job{
			Name:     "payout",
			Interval: time.Duration(sysCfg.NodeConfig.PayoutInterval) * time.Second,
			Run: func(ctx context.Context) error {
				for _, m := range wrk.Managers() {
					if err := wrk.RequestPayout(ctx, m); err != nil {
						logger.Warn("Payout request failed", "manager", m, "error", err)
					}
				}
				return nil
			},
		})
	}

	//server
	if err := transport.Start(); err != nil {
		logger.Error("Failed to start transport", "error", err)
		os.Exit(1)
	}
	httpServer := http2.NewServer(sysCfg.HttpConfig.Port, "effectd-"+role, handlers.New(sysCfg.JwtConfig),
		registry, hub, logger.Named("http"), routes...)
	if err := httpServer.Init(); err != nil {
		logger.Error("Failed to init http server", "error", err)
		os.Exit(1)
	}
	httpServer.Start(ctx)

	engine := schedulerengine.NewSchedulerEngine(logger.Named("scheduler"), jobs...)
	if !sysCfg.DebugMode {
		engine.StartJobScheduleEngine(ctx)
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	engine.Wait()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Http server forced to shutdown", "error", err)
	}
	if err := transport.Stop(shutdownCtx); err != nil {
		logger.Error("Transport forced to shutdown", "error", err)
	}
	logger.Info("successfully shutdown server")
}

func setupSigner(cfg *config.NodeConfig, logger *logging.ZapLogger) (*crypto.Signer, error) {
	if cfg.PrivateKey != "" {
		return crypto.NewSigner(cfg.PrivateKey)
	}
	signer, err := crypto.GenerateSigner()
	if err != nil {
		return nil, err
	}
	logger.Warn("PRIVATE_KEY not set, using an ephemeral key", "peer", signer.PeerID())
	return signer, nil
}

func setupDatastore(ctx context.Context, cfg *config.AppConfig, logger *logging.ZapLogger) (secondary.Datastore, error) {
	switch cfg.StoreConfig.Kind {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlstore.Open(ctx, sqlstore.SQLite, cfg.StoreConfig.SQLitePath, logger.Named("sqlite"))
	case "postgres":
		dialect := sqlstore.Postgres
		if cfg.PostgresConfig.Driver == sqlstore.PostgresPgx.Driver {
			dialect = sqlstore.PostgresPgx
		}
		return sqlstore.Open(ctx, dialect, cfg.PostgresConfig.Url, logger.Named("postgres"))
	case "mongo":
		return mongostore.Connect(ctx, cfg.MongoConfig.Uri, cfg.MongoConfig.Database, logger.Named("mongo"))
	default:
		return nil, fmt.Errorf("unknown datastore %q", cfg.StoreConfig.Kind)
	}
}

func setupQueue(ctx context.Context, cfg *config.RedisConfig, logger *logging.ZapLogger) (secondary.WorkerQueue, error) {
	switch cfg.Queue {
	case "memory":
		return workerqueue.New(), nil
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Url,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisqueue.NewQueue(redisClient, "effect:workers", logger.Named("queue")), nil
	default:
		return nil, fmt.Errorf("unknown worker queue %q", cfg.Queue)
	}
}

func seedTasks(ctx context.Context, path string, decimals int32, tasks task.ITaskService, tpls template.ITemplateService) error {
	seed, err := config.LoadTaskSeed(path, decimals)
	if err != nil {
		return err
	}
	for _, tpl := range seed.Templates {
		if _, err := tpls.CreateTemplate(ctx, tpl.ID, tpl.Data); err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
			return err
		}
	}
	for _, t := range seed.Tasks {
		if _, err := tasks.CreateTask(ctx, t); err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

// printToken prints a one hour operator token for the admin API
func printToken(cfg *config.AppConfig) {
	if cfg.JwtConfig.Secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	tok, err := crypto.NewJWTService(cfg.JwtConfig).GenerateTokenHMAC(context.Background(), "HS256", map[string]interface{}{
		"sub": "operator",
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(tok)
}

func InitReader(environment string) {
	if environment == "" {
		return
	}
	err := godotenv.Load(environment + ".env")
	if err != nil {
		log.Fatalf("Error loading %s.env file", environment)
	}
}
