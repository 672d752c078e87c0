package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"atamind/internal/analytics"
	"atamind/internal/config"
	"atamind/internal/content"
	"atamind/internal/database"
	"atamind/internal/locks"
	"atamind/internal/logger"
	"atamind/internal/models"
	"atamind/internal/repository"
	"atamind/internal/service"
)

// parallelReports bounds concurrent model calls during a batch run
const parallelReports = 4

func main() {
	// Define subcommands
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Generate flags
	generateChild := generateCmd.String("child", "", "Child ID (default: every child)")
	generateNotify := generateCmd.Bool("notify", false, "Email each report to the guardian")

	// List flags
	listChild := listCmd.String("child", "", "Child ID (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	childRepo := repository.NewChildRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])

		analyticsService, err := newAnalyticsService(ctx, cfg, db, log)
		if err != nil {
			log.Fatal("failed to initialize analytics", zap.Error(err))
		}
		var delivery *service.ReportDelivery
		if *generateNotify {
			emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
			if err != nil {
				log.Fatal("failed to initialize email", zap.Error(err))
			}
			delivery = service.NewReportDelivery(guardianRepo, emailService, log)
		}

		if err := handleGenerate(ctx, childRepo, analyticsService, delivery, *generateChild, log); err != nil {
			log.Fatal("report generation failed", zap.Error(err))
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if *listChild == "" {
			fmt.Println("Error: -child flag is required")
			listCmd.PrintDefaults()
			os.Exit(1)
		}
		if err := handleList(ctx, repository.NewReportRepository(db), *listChild); err != nil {
			log.Fatal("listing reports failed", zap.Error(err))
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func newAnalyticsService(ctx context.Context, cfg *config.Config, db *database.DB, log *zap.Logger) (*service.AnalyticsService, error) {
	gemini, err := content.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiImageModel, log)
	if err != nil {
		return nil, err
	}
	contentService := content.NewResilient(gemini, content.ResilienceConfig{
		TextTimeout:  cfg.AITimeout,
		MediaTimeout: cfg.MediaTimeout,
	}, log.Named("content"))

	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.RedisURL != "" {
		rl, err := locks.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		locker = rl
	}

	return service.NewAnalyticsService(
		service.NewChildService(repository.NewChildRepository(db)),
		repository.NewSessionRepository(db),
		repository.NewRatingRepository(db),
		repository.NewReportRepository(db),
		analytics.NewAdvisor(contentService, log),
		locker,
		log,
	), nil
}

func handleGenerate(ctx context.Context, childRepo *repository.ChildRepository, analyticsService *service.AnalyticsService, delivery *service.ReportDelivery, childID string, log *zap.Logger) error {
	var children []models.Child
	if childID != "" {
		child, err := childRepo.GetByID(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return fmt.Errorf("child %s not found", childID)
		}
		children = append(children, *child)
	} else {
		all, err := childRepo.ListAll(ctx)
		if err != nil {
			return err
		}
		children = all
	}

	log.Info("generating reports", zap.Int("children", len(children)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelReports)
	for i := range children {
		child := &children[i]
		g.Go(func() error {
			report, err := analyticsService.GenerateReportForChild(gctx, child)
			if err != nil {
				return fmt.Errorf("child %s: %w", child.ID, err)
			}
			if delivery != nil {
				if err := delivery.Notify(gctx, child, report); err != nil {
					log.Warn("failed to deliver report", zap.String("child_id", child.ID), zap.Error(err))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("report generation complete", zap.Int("reports", len(children)))
	return nil
}

func handleList(ctx context.Context, reportRepo *repository.ReportRepository, childID string) error {
	reports, err := reportRepo.ListByChild(ctx, childID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func printUsage() {
	fmt.Println("AtaMind Report Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  reports generate [-child ID] [-notify]")
	fmt.Println("  reports list -child ID")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate    Build biweekly reports for one child or every child")
	fmt.Println("  list        Print stored reports for a child as JSON")
}
