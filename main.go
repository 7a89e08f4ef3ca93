package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pacelab/internal/api"
	"pacelab/internal/config"
	"pacelab/internal/history"
	"pacelab/internal/logging"
	"pacelab/internal/service"
	"pacelab/internal/store"
)

const usage = `usage: pacelab [-config path] <command> [flags]

commands:
  serve        run the HTTP API
  classify     label running activities with a workout type
  variations   compute pace and heart-rate variability from streams
  skill        estimate a user's skill tier
  calibrate    show safe paces, or recalibrate a plan
  init-config  write an example config file
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("pacelab", flag.ContinueOnError)
	configPath := global.String("config", "", "config file (default $PACELAB_CONFIG or ~/.pacelab/config.json)")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("no command given")
	}
	cmd, cmdArgs := global.Arg(0), global.Args()[1:]

	if cmd == "init-config" {
		return initConfig(*configPath)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	a := newApp(ctx, cfg, db, logger)

	switch cmd {
	case "serve":
		return a.serve(ctx, cmdArgs)
	case "classify":
		return a.classify(ctx, cmdArgs)
	case "variations":
		return a.variations(ctx, cmdArgs)
	case "skill":
		return a.skill(ctx, cmdArgs)
	case "calibrate":
		return a.calibrate(ctx, cmdArgs)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func initConfig(path string) error {
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.CreateExample(path); err != nil {
		return fmt.Errorf("creating example config: %w", err)
	}
	fmt.Printf("Example config written to:\n  %s\n\n", path)
	fmt.Println("Set history.source to \"remote\" and fill in the API credentials to read history over HTTP.")
	return nil
}

// loadConfig falls back to defaults when no config file exists
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrNoConfig) {
		d := config.DefaultConfig()
		cfg = &d
	} else if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app holds the services wired for the configured history source
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	classifier *service.ClassificationService
	variation  *service.VariationService
	skiller    *service.SkillService
	calibrator *service.CalibrationService
}

func newApp(ctx context.Context, cfg *config.Config, db *store.DB, logger *slog.Logger) *app {
	a := &app{cfg: cfg, logger: logger}

	var (
		hist    service.HistoryStore = db
		streams service.StreamSource = db
		users   service.UserStore    = db
	)
	if cfg.History.Source == config.SourceRemote {
		remote := history.NewFromConfig(ctx, cfg.History)
		hist, streams, users = remote, remote, remote
	}

	opts := service.BatchOptions{PageSize: cfg.Batch.PageSize, Workers: cfg.Batch.Workers}
	a.classifier = service.NewClassificationService(hist, db, db, cfg.Classifier, opts, logger)
	a.variation = service.NewVariationService(hist, streams, db, cfg.Features, opts, logger)
	a.skiller = service.NewSkillService(hist, cfg.Skill, opts, logger)
	a.calibrator = service.NewCalibrationService(hist, users, db, cfg.Calibrator, opts, logger)
	return a
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h := api.NewHandler(a.classifier, a.variation, a.skiller, a.calibrator)
	server := &http.Server{
		Addr:              *addr,
		Handler:           api.SetupRouter(h, a.logger.With("component", "http")),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", *addr, "history_source", a.cfg.History.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (a *app) classify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	user := fs.Int64("user", 0, "only classify this user's activities")
	reclassify := fs.Bool("reclassify", false, "relabel activities that already have a label")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.classifier.Run(ctx, service.ClassifyRequest{UserID: optionalID(*user), Reclassify: *reclassify})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func (a *app) variations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("variations", flag.ContinueOnError)
	user := fs.Int64("user", 0, "only process this user's activities")
	recompute := fs.Bool("recompute", false, "recompute existing rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.variation.Run(ctx, service.VariationRequest{UserID: optionalID(*user), Recompute: *recompute})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func (a *app) skill(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("skill", flag.ContinueOnError)
	user := fs.Int64("user", 0, "user to estimate (required)")
	lookback := fs.Int("lookback-days", 0, "lookback window in days (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == 0 {
		return errors.New("skill: -user is required")
	}

	res, err := a.skiller.Estimate(ctx, service.SkillRequest{UserID: *user, LookbackDays: *lookback})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func (a *app) calibrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	user := fs.Int64("user", 0, "print the user's safe paces")
	plan := fs.Int64("plan", 0, "recalibrate this plan")
	apply := fs.Bool("apply", false, "write corrections back to the plan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *plan != 0:
		res, err := a.calibrator.RecalibratePlan(ctx, *plan, *apply)
		if err != nil {
			return err
		}
		return printJSON(res)
	case *user != 0:
		res, err := a.calibrator.SafePaces(ctx, *user)
		if err != nil {
			return err
		}
		return printJSON(res)
	default:
		return errors.New("calibrate: one of -user or -plan is required")
	}
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
