package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"agri_rental/internal/bootstrap"
	"agri_rental/internal/infra/config"
	idb "agri_rental/internal/infra/database"
	"agri_rental/internal/infra/logger"
	"agri_rental/internal/infra/metrics"
	"agri_rental/internal/infra/scheduler"
	"agri_rental/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.For("main")

	mainLogger.Infof("Configuration loaded. Environment: %s, notification mode: %s", cfg.Environment, cfg.NotificationMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.ApplySchema(ctx, db); err != nil {
		mainLogger.Fatalf("FATAL: Could not apply database schema: %v", err)
	}
	mainLogger.Info("Database connection established and schema applied.")

	services, err := bootstrap.Services(db, cfg, logger.Log)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not initialize services: %v", err)
	}
	mainLogger.Info("Rental services initialized.")

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			mainLogger.Fatalf("FATAL: Could not register metrics: %v", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if _, err := idb.Health(r.Context(), db); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLogger.WithError(err).Error("Metrics server stopped")
			}
		}()
		mainLogger.WithField("addr", cfg.MetricsAddr).Info("Metrics endpoint listening.")
	}

	var reminder scheduler.RentReminder = services.Reminders
	var bot *telebot.Bot
	if cfg.BotEnabled() {
		botLogger := logger.For("telebot")
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
				}
				entry.Error("Telegram handler failed")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
		}

		cmds := telegram.NewAdminCommands(services.Payments, services.Contracts, services.Schedules, services.Refunds,
			cfg.AdminTelegramID, cfg.AdminUserID, cfg.Debug, logger.Log.WithField("service", "rental"))
		telegram.RegisterAdminHandlers(ctx, bot, cmds)
		reminder = telegram.NewReportingReminder(reminder, telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, logger.Log.WithField("service", "rental"))
		mainLogger.Info("Admin command handlers registered.")
	} else {
		mainLogger.Info("TELEGRAM_TOKEN is not set, admin bot disabled.")
	}

	rentDue := scheduler.NewRentDueScheduler(reminder, logger.Log.WithField("service", "rental"), cfg.CronSpecRentDue, cfg.RentDueDaysAhead)
	if err := rentDue.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start scheduler: %v", err)
	}

	if bot != nil {
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}
	mainLogger.Info("Application setup complete.")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	rentDue.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Metrics server did not shut down cleanly")
		}
	}
	// db.Close() is handled by defer
	mainLogger.Info("Application shut down gracefully.")
}
