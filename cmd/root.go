package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/config"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/database"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/messaging"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/notification"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/repository"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/scheduler"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/service"
	"github.com/Shivanand-hulikatti/workshop-registration/internal/tracing"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "workshops",
	Short:        "Workshop registration, waitlist and notification service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log = logger.New(cfg.Environment)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, sendScheduledCmd, initTemplatesCmd, migrateCmd)
}

// app holds the wired application graph shared by the commands.
type app struct {
	pool      *pgxpool.Pool
	tracer    *tracing.Provider
	templates *notification.TemplateStore
	scheduler *scheduler.Scheduler
	courses   *service.CourseService
	messages  *service.MessagingService
}

// newApp connects to the database and wires repositories, transports and
// services. Callers must call close.
func newApp(ctx context.Context) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("database: %w", err)
	}

	courseRepo := repository.NewCourseRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	tplRepo := repository.NewTemplateRepository(pool)
	logRepo := repository.NewMessageLogRepository(pool)
	schedRepo := repository.NewScheduledMessageRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	templates := notification.NewTemplateStore(tplRepo, notification.DefaultTemplateTTL)
	notifier := notification.New(templates, newSMSSender(), newEmailSender(), logRepo, settingsRepo,
		notification.Config{
			SMSEnabled: cfg.SMSEnabled,
			AdminPhone: cfg.AdminPhone,
			AdminEmail: cfg.AdminEmail,
		},
		log.With().Str("component", "notification").Logger(),
		notification.WithTracer(tp.Tracer()),
	)
	sched := scheduler.New(schedRepo, regRepo, courseRepo, templates, notifier, loc,
		log.With().Str("component", "scheduler").Logger(),
		scheduler.WithTracer(tp.Tracer()),
		scheduler.WithSweepLock(repository.NewSweepLock(pool)),
	)

	validate := service.NewValidator()
	return &app{
		pool:      pool,
		tracer:    tp,
		templates: templates,
		scheduler: sched,
		courses:   service.NewCourseService(courseRepo, regRepo, notifier, sched, validate, log),
		messages: service.NewMessagingService(tplRepo, templates, logRepo, settingsRepo, sched,
			cfg.SMSEnabled, validate, log),
	}, nil
}

func (a *app) close() {
	a.pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("flush traces")
	}
}

// newSMSSender returns nil when Twilio is not configured; the notifier then
// logs SMS attempts as disabled.
func newSMSSender() messaging.SMSSender {
	sender, err := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	if err != nil {
		if cfg.SMSEnabled {
			log.Warn().Err(err).Msg("SMS enabled but Twilio is not configured")
		}
		return nil
	}
	return sender
}

func newEmailSender() messaging.EmailSender {
	if cfg.MailSuppressSend {
		return messaging.NewLogEmailSender(log.With().Str("component", "mail").Logger())
	}
	return messaging.NewSMTPSender(cfg.MailServer, cfg.MailPort, cfg.MailUsername, cfg.MailPassword,
		cfg.MailUseSSL, cfg.MailDefaultSender, cfg.MailReplyTo)
}
