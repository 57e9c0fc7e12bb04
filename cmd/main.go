package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsewatch/internal/alert"
	"github.com/pulsewatch/internal/api"
	"github.com/pulsewatch/internal/config"
	"github.com/pulsewatch/internal/database"
	"github.com/pulsewatch/internal/events"
	"github.com/pulsewatch/internal/logger"
	"github.com/pulsewatch/internal/models"
	"github.com/pulsewatch/internal/notify"
	"github.com/pulsewatch/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		cfg = &config.Config{}
	}

	logger.Init(cfg.Log.Level)
	log := logger.WithComponent("main")

	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	db := database.GetDB()
	rules := store.NewRuleStore(db)
	samples := store.NewMetricStore(db)
	projects := store.NewProjectStore(db)

	seedDefaults(rules, projects)

	broadcaster := events.NewBroadcaster()

	dispatcher := alert.NewDispatcher(
		cfg.WebhookTimeout(),
		notify.NewEmailNotifier(
			cfg.Alert.Email.SMTPHost,
			cfg.Alert.Email.SMTPPort,
			cfg.Alert.Email.From,
			cfg.Alert.Email.Password,
			cfg.Alert.Email.ToReceivers,
		),
		notify.NewChatNotifier(cfg.Alert.Chat.Token, cfg.Alert.Chat.Channel),
		notify.NewWebhookNotifier(cfg.Alert.Webhook.URL),
	)

	lifecycle := alert.NewLifecyclePublisher(rules, projects, dispatcher, broadcaster)
	machine := alert.NewStateMachine()

	scheduler := alert.NewScheduler(rules, samples, machine, lifecycle, alert.SchedulerConfig{
		Interval:    cfg.TickInterval(),
		Staleness:   cfg.Staleness(),
		MaxParallel: int64(cfg.Scheduler.MaxParallel),
	})
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(rules, samples, projects, machine, lifecycle, broadcaster)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// seedDefaults installs a bootstrap project and the default rule set when
// the database is empty.
func seedDefaults(rules *store.RuleStore, projects *store.ProjectStore) {
	log := logger.WithComponent("seed")

	count, err := rules.Count()
	if err != nil {
		log.Warn().Err(err).Msg("failed to count rules")
		return
	}
	if count > 0 {
		return
	}

	projectCount, err := projects.Count()
	if err != nil {
		log.Warn().Err(err).Msg("failed to count projects")
		return
	}

	var projectID uint
	if projectCount == 0 {
		project := &models.Project{Name: "default", Description: "Bootstrap project"}
		if err := projects.Create(project); err != nil {
			log.Warn().Err(err).Msg("failed to create bootstrap project")
			return
		}
		projectID = project.ID
	} else {
		existing, err := projects.List()
		if err != nil || len(existing) == 0 {
			return
		}
		projectID = existing[0].ID
	}

	for _, rule := range store.DefaultRules(projectID) {
		rule := rule
		if err := rules.Create(&rule); err != nil {
			log.Warn().Err(err).Str("rule", rule.Name).Msg("failed to seed default rule")
		}
	}
	log.Info().Uint("project_id", projectID).Msg("default rules installed")
}
