package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/marts-engine/pkg/config"
	"github.com/ekaya-inc/marts-engine/pkg/database"
	"github.com/ekaya-inc/marts-engine/pkg/logging"
	"github.com/ekaya-inc/marts-engine/pkg/models"
	"github.com/ekaya-inc/marts-engine/pkg/repositories"
	"github.com/ekaya-inc/marts-engine/pkg/services"
	"github.com/ekaya-inc/marts-engine/pkg/services/dq"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `usage: marts-engine <command> [flags]

commands:
  build      build all models in dependency order
  test       evaluate all data quality rules
  freshness  check source freshness
  run        build all models, then evaluate all rules
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	fullRefresh := flags.Bool("full-refresh", false, "force full loads for incremental models")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting marts-engine",
		zap.String("version", cfg.Version),
		zap.String("command", command),
		zap.String("warehouse", logging.SanitizeConnectionString(cfg.Warehouse.ConnectionString())))

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.String("error", logging.SanitizeError(err)))
	}
	defer app.Close()

	ctx := context.Background()
	exitCode := 0
	switch command {
	case "build":
		exitCode = app.build(ctx, *fullRefresh)
	case "test":
		exitCode = app.test(ctx)
	case "freshness":
		exitCode = app.freshness(ctx)
	case "run":
		exitCode = app.build(ctx, *fullRefresh)
		if exitCode == 0 {
			exitCode = app.test(ctx)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		exitCode = 2
	}
	os.Exit(exitCode)
}

// app holds the wired services for one invocation.
type app struct {
	db       *database.DB
	runner   services.Runner
	engine   *dq.Engine
	freshSvc services.FreshnessChecker
	logger   *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	ctx := context.Background()

	project, err := config.LoadProject(cfg.ProjectPath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Warehouse.ConnectionString(),
		MaxConnections: cfg.Warehouse.MaxConnections,
	})
	if err != nil {
		return nil, err
	}

	// Migrations run over database/sql; golang-migrate does not speak pgx pools.
	migrationDB := stdlib.OpenDBFromPool(db.Pool)
	if err := runMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		db.Close()
		return nil, err
	}

	orderRepo := repositories.NewOrderRepository(db)
	lineItemRepo := repositories.NewLineItemRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	orderFactRepo := repositories.NewOrderFactRepository(db)
	lineItemFactRepo := repositories.NewLineItemFactRepository(db)
	relationRepo := repositories.NewRelationRepository(db)

	builder := services.NewIncrementalBuilder(
		orderRepo, lineItemRepo, orderFactRepo, lineItemFactRepo,
		time.Duration(cfg.Build.LookbackDays)*24*time.Hour, logger)

	runner := services.NewRunner(project, relationRepo, builder, logger)

	rules, err := dq.BuildRules(project.Rules, dq.Defaults{
		ReconcileTolerance: decimal.NewFromFloat(cfg.Test.ReconcileTolerance),
	}, relationRepo)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine := dq.NewEngine(
		dq.DefaultFetchers(orderFactRepo, lineItemFactRepo, customerRepo),
		rules, logger)

	freshSvc := services.NewFreshnessChecker(
		project.Sources,
		warehouse.NewPostgresPoolAdapter(db.Pool),
		warehouse.Open,
		logger)

	return &app{
		db:       db,
		runner:   runner,
		engine:   engine,
		freshSvc: freshSvc,
		logger:   logger,
	}, nil
}

func runMigrations(db *sql.DB, path string, logger *zap.Logger) error {
	return database.RunMigrations(db, path, logger)
}

func (a *app) Close() {
	a.db.Close()
}

func (a *app) build(ctx context.Context, fullRefresh bool) int {
	summary, err := a.runner.BuildAll(ctx, fullRefresh)
	if err != nil {
		a.logger.Error("Build run aborted", zap.Error(err))
		return 1
	}

	for _, m := range summary.Models {
		line := fmt.Sprintf("%-20s %s", m.Model, m.Status)
		if m.Err != nil {
			line += fmt.Sprintf(" (%v)", m.Err)
		}
		fmt.Println(line)
	}
	if summary.Status() == models.RunError {
		return 1
	}
	return 0
}

func (a *app) test(ctx context.Context) int {
	summary, err := a.engine.Run(ctx)
	if err != nil {
		a.logger.Error("Test run aborted", zap.Error(err))
		return 1
	}

	for _, r := range summary.Results {
		line := fmt.Sprintf("%-40s [%s] %s", r.RuleID, r.Severity, r.Status)
		if r.Err != nil {
			line += fmt.Sprintf(" (%v)", r.Err)
		}
		fmt.Println(line)
		for _, v := range r.Violations {
			fmt.Printf("    %s: %s\n", v.Key, v.Detail)
		}
	}

	fmt.Printf("overall: %s\n", summary.Status())
	if summary.Status() == "error" {
		return 1
	}
	return 0
}

func (a *app) freshness(ctx context.Context) int {
	results, err := a.freshSvc.CheckAll(ctx)
	if err != nil {
		a.logger.Error("Freshness check aborted", zap.Error(err))
		return 1
	}

	exitCode := 0
	for _, r := range results {
		line := fmt.Sprintf("%-20s %s", r.Source, r.State)
		if r.Err != nil {
			line += fmt.Sprintf(" (%v)", r.Err)
		} else {
			line += fmt.Sprintf(" (stale for %s)", r.Staleness.Round(time.Minute))
		}
		fmt.Println(line)
		if r.State == models.FreshnessError {
			exitCode = 1
		}
	}
	return exitCode
}
