package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/config"
	"token-alert-bot/internal/alert"
	"token-alert-bot/internal/commands"
	"token-alert-bot/internal/metrics"
	"token-alert-bot/internal/notify"
	"token-alert-bot/internal/price"
	"token-alert-bot/internal/schedule"
	"token-alert-bot/internal/store"
	"token-alert-bot/internal/telegram"
	"token-alert-bot/internal/watch"
	"token-alert-bot/lib/translation"
)

const metricsSaveInterval = 5 * time.Minute

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	translation.Configure("locales", config.GetString("lang"))

	backend, saver, err := openBackend(ctx)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", config.GetString("db_driver"), err)
	}

	alerts := store.NewAlertStore(backend)
	watches := store.NewWatchStore(backend)
	if err := alerts.Load(ctx); err != nil {
		log.Fatalf("Failed to load alerts: %v", err)
	}
	if err := watches.Load(ctx); err != nil {
		log.Fatalf("Failed to load watchlist: %v", err)
	}

	engineMetrics := metrics.NewEngine(prometheus.DefaultRegisterer)
	botMetrics := metrics.NewBot(prometheus.DefaultRegisterer)
	if saver != nil {
		botMetrics.Load(saver)
	}

	fetchTimeout := config.GetDuration("fetch_timeout")
	notifyTimeout := config.GetDuration("notify_timeout")
	concurrency := config.GetInt("fetch_concurrency")

	fetcher := price.NewDexScreener(config.GetString("provider_url"), fetchTimeout)
	svc := commands.New(alerts, watches, fetcher, fetchTimeout)

	var (
		notifier notify.Notifier = notify.Console{}
		bot      *telegram.Bot
	)
	if token := config.GetString("telegram_bot_token"); token != "" {
		bot, err = telegram.NewBot(telegram.BotConfig{
			Token:          token,
			Debug:          config.GetBool("debug"),
			UpdatesTimeout: 60,
		}, svc)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		notifier = bot
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, notifications are written to the log")
	}

	alertScheduler := alert.NewScheduler(alert.Options{
		Store:         alerts,
		Fetcher:       fetcher,
		Notifier:      notifier,
		Metrics:       engineMetrics,
		Concurrency:   concurrency,
		FetchTimeout:  fetchTimeout,
		NotifyTimeout: notifyTimeout,
	})
	watchScheduler := watch.NewScheduler(watch.Options{
		Store:         watches,
		Fetcher:       fetcher,
		Notifier:      notifier,
		Metrics:       engineMetrics,
		Threshold:     config.GetFloat64("volatility_threshold"),
		Concurrency:   concurrency,
		FetchTimeout:  fetchTimeout,
		NotifyTimeout: notifyTimeout,
	})

	var group schedule.Group
	group.Go(ctx, schedule.Loop{
		Name:     "alert",
		Interval: config.GetDuration("alert_interval"),
		Task:     func(ctx context.Context) { alertScheduler.Sweep(ctx) },
	})
	group.Go(ctx, schedule.Loop{
		Name:     "watch",
		Interval: config.GetDuration("watch_interval"),
		Task:     func(ctx context.Context) { watchScheduler.Sweep(ctx) },
	})
	if saver != nil {
		group.Go(ctx, schedule.Loop{
			Name:     "metrics",
			Interval: metricsSaveInterval,
			Task:     func(context.Context) { botMetrics.Save(saver) },
		})
	}

	updatesDone := make(chan struct{})
	if bot != nil {
		go func() {
			defer close(updatesDone)
			handleUpdates(ctx, bot, botMetrics, bot.GetUpdatesChannel())
		}()
	} else {
		close(updatesDone)
	}

	server := launchMetricsAndHealthServer(config.GetInt("metrics_port"))

	<-ctx.Done()
	log.Info("Shutting down...")

	if bot != nil {
		bot.StopUpdates()
	}
	group.Wait()
	// the poller only notices the stop between long polls
	select {
	case <-updatesDone:
	case <-time.After(5 * time.Second):
		log.Warn("Update handler still polling, continuing shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := alerts.Persist(shutdownCtx); err != nil {
		log.Errorf("Failed to persist alerts: %v", err)
	}
	if err := watches.Persist(shutdownCtx); err != nil {
		log.Errorf("Failed to persist watchlist: %v", err)
	}
	if saver != nil {
		botMetrics.Save(saver)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop metrics server: %v", err)
	}
	if err := backend.Close(); err != nil {
		log.Errorf("Failed to close store: %v", err)
	}
	log.Info("State saved, bye")
}

func setupLogging() {
	level, err := log.ParseLevel(config.GetString("log_level"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Debug("Starting telegram bot...")
}

func handleUpdates(ctx context.Context, bot *telegram.Bot, botMetrics *metrics.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.CallbackQuery != nil {
			bot.HandleCallbackQuery(ctx, update.CallbackQuery)
			continue
		}

		if update.Message == nil || !update.Message.IsCommand() {
			log.Debug("Received non-message or non-command")
			continue
		}

		chatID := update.Message.Chat.ID
		chatName := update.Message.Chat.Title
		if chatName == "" {
			chatName = fmt.Sprintf("%s-%d", "PrivateChat", chatID)
		}
		botMetrics.Message(chatID, chatName)

		handleCommand(ctx, bot, botMetrics, update)
	}
}

func handleCommand(ctx context.Context, bot *telegram.Bot, botMetrics *metrics.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	if err := bot.SendMessage(bot.HandleUpdate(ctx, update)); err != nil {
		log.Errorf("Failed to send message: %v", err)
	} else {
		botMetrics.CommandsProcessed.Inc()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthCheckHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("Launching metrics and health endpoint on :%d", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics and health server stopped: %v", err)
		}
	}()
	return server
}
