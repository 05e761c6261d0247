// Package app wires the engine's components into a running process:
// persistence, cache, exchange connectivity, the optional LLM advisor, the
// orchestrator cycle loop, and the read-only API, then drives graceful
// shutdown on SIGINT/SIGTERM. The wiring order and shutdown shape follow
// the teacher's App.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haka-futures-engine/api"
	"haka-futures-engine/cache"
	"haka-futures-engine/config"
	"haka-futures-engine/eventbus"
	"haka-futures-engine/eventbus/wire"
	"haka-futures-engine/exchange"
	"haka-futures-engine/llmadvisor"
	"haka-futures-engine/notifications"
	"haka-futures-engine/orchestrator"
	"haka-futures-engine/persistence"
	"haka-futures-engine/snapshot"

	"net/http"
)

// promhttpRegisterer is the single Prometheus registry the orchestrator's
// collectors register into and /metrics serves from.
func promhttpRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// wireEvent builds the compact cross-process event envelope for one
// cycle's outcome.
func wireEvent(result orchestrator.CycleResult) wire.DecisionEvent {
	return wire.DecisionEvent{
		Symbol:              result.Symbol,
		Action:              string(result.Decision.Action),
		Confidence:          result.Decision.Confidence,
		GeneratedAtUnixNano: time.Now().UnixNano(),
	}
}

// App holds every long-lived component the engine needs for one process
// lifetime.
type App struct {
	config *config.Config

	db       *persistence.Database
	repo     *persistence.Repository
	legacy   *persistence.LegacyDB
	redis    *cache.RedisClient
	advisorC *cache.AdvisorCache

	restClient *exchange.RESTClient
	stream     *exchange.StreamWatcher
	account    *exchange.AccountProvider

	advisor *llmadvisor.Advisor
	webhook *notifications.WebhookManager

	broker       *eventbus.Broker
	orchestrator *orchestrator.Orchestrator
	history      *api.History
	apiServer    *api.Server
}

// New constructs an App from configuration. Connections are opened in
// Start, not here, so construction never fails.
func New(cfg *config.Config) *App {
	return &App{config: cfg}
}

// Start connects every backing service, wires the pipeline, and runs until
// an interrupt signal triggers graceful shutdown.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.connectPersistence(); err != nil {
		return err
	}
	a.connectCache()
	a.connectExchange()
	a.connectAdvisor()

	a.webhook = notifications.NewWebhookManager(a.config.Webhook)

	a.broker = eventbus.NewBroker(nil)
	go a.broker.Run()

	dataSync := snapshot.NewDataSyncAgent(
		a.restClient,
		time.Duration(a.config.Timeouts.KlinesSeconds)*time.Second,
		time.Duration(a.config.Timeouts.AuxMetricsSeconds)*time.Second,
	)

	a.orchestrator = orchestrator.New(a.config, dataSync, nil, a.advisor, a.account, a.restClient)
	orchestrator.RegisterMetrics(promhttpRegisterer())
	a.orchestrator.OnCycle(a.onCycle)

	a.history = api.NewHistory(50)
	a.apiServer = api.NewServer(a.legacy, a.broker, a.history)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("❌ orchestrator stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.stream.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.stream.RunHealthMonitor(ctx)
	}()

	go func() {
		if err := a.apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API server stopped: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", a.config.MetricsPort), mux); err != nil {
			log.Printf("⚠️  metrics server stopped: %v", err)
		}
	}()

	log.Println("🚀 engine running")
	err := a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

func (a *App) connectPersistence() error {
	log.Println("🗄️  connecting to database...")
	db, err := persistence.Connect(
		a.config.Database.Host,
		mustAtoi(a.config.Database.Port),
		a.config.Database.Name,
		a.config.Database.User,
		a.config.Database.Password,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	a.repo = persistence.NewRepository(db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	legacy, err := persistence.ConnectLegacy(
		a.config.Database.Host,
		a.config.Database.Port,
		a.config.Database.Name,
		a.config.Database.User,
		a.config.Database.Password,
	)
	if err != nil {
		log.Printf("⚠️  legacy analytics connection failed, analytics endpoints disabled: %v", err)
	} else {
		a.legacy = legacy
	}
	return nil
}

func (a *App) connectCache() {
	log.Println("🧠 connecting to redis...")
	redisClient := cache.NewRedisClient(a.config.Redis.Host, a.config.Redis.Port, a.config.Redis.Password)
	if redisClient == nil {
		log.Println("⚠️  redis connection failed, advisor caching disabled")
		return
	}
	a.redis = redisClient
	a.advisorC = cache.NewAdvisorCache(redisClient)
}

func (a *App) connectExchange() {
	a.restClient = exchange.NewRESTClient(
		a.config.Exchange.RESTBaseURL,
		a.config.Exchange.APIKey,
		a.config.Exchange.APISecret,
	)
	a.account = exchange.NewAccountProvider(a.restClient)
	a.stream = exchange.NewStreamWatcher(a.config.Exchange.WSURL)
	if err := a.stream.Connect(); err != nil {
		log.Printf("⚠️  mark-price stream connect failed, will retry: %v", err)
	}
}

func (a *App) connectAdvisor() {
	if !a.config.LLM.Enabled {
		log.Println("ℹ️  llm advisor disabled")
		return
	}
	client := llmadvisor.NewClient(a.config.LLM.Endpoint, a.config.LLM.APIKey, a.config.LLM.Model)
	a.advisor = llmadvisor.NewAdvisor(client, true)
	if a.advisorC != nil {
		a.advisor = a.advisor.WithCache(a.advisorC)
	}
	log.Printf("✅ llm advisor enabled (model: %s)", a.config.LLM.Model)
}

// onCycle fans a completed CycleResult out to persistence, the in-memory
// API history, the event broker, and the webhook notifier.
func (a *App) onCycle(result orchestrator.CycleResult) {
	a.history.Record(result)

	if a.repo != nil {
		if err := a.repo.RecordCycle(result); err != nil {
			log.Printf("⚠️  %s: failed to persist cycle: %v", result.Symbol, err)
		}
	}

	a.broker.PublishDecision(wireEvent(result))
	a.webhook.SendAlert(result)
}

// gracefulShutdown waits for SIGINT/SIGTERM, cancels ctx, and closes
// backing connections within a bounded timeout.
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	fmt.Println("\n🛑 shutdown signal received, initiating graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if a.stream != nil {
			_ = a.stream.Close()
		}
		if a.db != nil {
			_ = a.db.Close()
		}
		if a.legacy != nil {
			_ = a.legacy.Close()
		}
		if a.redis != nil {
			_ = a.redis.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		fmt.Println("✅ graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
