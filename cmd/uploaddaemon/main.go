// Command uploaddaemon drains the upload queue for a single marketplace
// platform forever, on the interval configured in the environment
// (overridable with --interval), until it receives SIGINT/SIGTERM.
// Different platforms are meant to run as separate uploaddaemon
// processes, one --platform flag each.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nuco-0416/ecauto-sub000/internal/adminhttp"
	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/daemon"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	_ "github.com/nuco-0416/ecauto-sub000/internal/platform/base"
	_ "github.com/nuco-0416/ecauto-sub000/internal/platform/ebay"
	"github.com/nuco-0416/ecauto-sub000/internal/proxy"
	"github.com/nuco-0416/ecauto-sub000/internal/queue"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "uploaddaemon",
		Usage:   "drains the upload queue for one downstream marketplace platform",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the upload queue consumer forever",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Required: true, Usage: "the single platform this process drains ('base', 'ebay', ...)"},
					&cli.IntFlag{Name: "interval", Usage: "cycle interval in seconds, overrides DAEMON_INTERVAL_SECONDS"},
					&cli.IntFlag{Name: "batch-size", Usage: "max rows claimed per cycle, overrides UPLOAD_BATCH_SIZE"},
					&cli.IntFlag{Name: "start-hour", Usage: "business-hour window start, overrides UPLOAD_START_HOUR"},
					&cli.IntFlag{Name: "end-hour", Usage: "business-hour window end, overrides UPLOAD_END_HOUR"},
				},
				Action: runUpload,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("uploaddaemon", err.Error())
		os.Exit(1)
	}
}

func runUpload(c *cli.Context) error {
	platformName := c.String("platform")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if n := c.Int("interval"); n > 0 {
		cfg.Daemon.IntervalSeconds = n
	}
	if n := c.Int("batch-size"); n > 0 {
		cfg.Upload.BatchSize = n
	}
	if n := c.Int("start-hour"); n > 0 || c.IsSet("start-hour") {
		cfg.Upload.StartHour = n
	}
	if n := c.Int("end-hour"); n > 0 || c.IsSet("end-hour") {
		cfg.Upload.EndHour = n
	}

	book, err := config.LoadAccountBook(cfg.ConfigDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StoreDBPath), 0o755); err != nil {
		return err
	}
	st, err := store.Open(cfg.StoreDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, err := notify.Load(filepath.Join(cfg.ConfigDir, "notifications.json"), nil)
	if err != nil {
		return err
	}

	rt, err := daemon.New("uploaddaemon-"+platformName, cfg.Daemon, notifier)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.AdminHTTPAddr != "" {
		admin := adminhttp.New(cfg.AdminHTTPAddr, rt)
		admin.Start()
		defer admin.Shutdown()
	}

	rl := ratelimit.New(map[ratelimit.Class]time.Duration{
		ratelimit.ClassCatalog:   cfg.Rates.Catalog,
		ratelimit.ClassBatch:     cfg.Rates.Batch,
		ratelimit.ClassPricing:   cfg.Rates.Pricing,
		ratelimit.ClassBaseWrite: cfg.Rates.BaseWrite,
	})

	deps := platform.Deps{
		Book:    book,
		Store:   st,
		Proxy:   proxy.New(book),
		Limiter: rl,
	}

	worker := queue.NewWorker(st, deps, notifier, queue.WorkerOptions{
		Platform:  platformName,
		BatchSize: cfg.Upload.BatchSize,
		StartHour: cfg.Upload.StartHour,
		EndHour:   cfg.Upload.EndHour,
	})

	runErr := rt.RunForever(func(tok *shutdown.Token) error {
		processed, err := worker.RunOnce(tok)
		logger.Stats("queue_processed", processed)
		if err != nil {
			return fmt.Errorf("uploaddaemon: %w", err)
		}
		return nil
	})
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}
