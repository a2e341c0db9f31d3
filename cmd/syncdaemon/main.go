// Command syncdaemon runs the two-phase Amazon price/stock sync and
// downstream reconciliation cycle forever, on the interval configured
// in the environment (overridable with --interval), until it receives
// SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nuco-0416/ecauto-sub000/internal/adminhttp"
	"github.com/nuco-0416/ecauto-sub000/internal/cache"
	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/daemon"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	_ "github.com/nuco-0416/ecauto-sub000/internal/platform/base"
	_ "github.com/nuco-0416/ecauto-sub000/internal/platform/ebay"
	"github.com/nuco-0416/ecauto-sub000/internal/proxy"
	"github.com/nuco-0416/ecauto-sub000/internal/ratelimit"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/spapi"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
	"github.com/nuco-0416/ecauto-sub000/internal/syncengine"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "syncdaemon",
		Usage:   "Amazon price/stock sync and downstream marketplace reconciliation",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the sync cycle forever",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "interval", Usage: "cycle interval in seconds, overrides DAEMON_INTERVAL_SECONDS"},
					&cli.StringFlag{Name: "platforms", Usage: "comma-separated platform list; default is every active platform"},
					&cli.BoolFlag{Name: "dry-run", Usage: "compute reconciliation without writing to any platform"},
					&cli.BoolFlag{Name: "skip-cache-update"},
					&cli.BoolFlag{Name: "stock-check-only", Usage: "skip Phase 1; reconcile visibility/quantity only"},
					&cli.IntFlag{Name: "max-items", Usage: "cap the number of ASINs refreshed in Phase 1"},
				},
				Action: runSync,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("syncdaemon", err.Error())
		os.Exit(1)
	}
}

func runSync(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if n := c.Int("interval"); n > 0 {
		cfg.Daemon.IntervalSeconds = n
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

	rt, err := daemon.New("syncdaemon", cfg.Daemon, notifier)
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

	spapiClient := spapi.New(cfg.Amazon, rl, notifier, cfg.DebugASIN)

	snapshots, err := cache.New(cfg.CacheDir, st)
	if err != nil {
		return err
	}

	deps := platform.Deps{
		Book:    book,
		Store:   st,
		Proxy:   proxy.New(book),
		Limiter: rl,
	}

	engine := syncengine.New(st, spapiClient, snapshots, book, deps, notifier)

	var platforms []string
	if p := c.String("platforms"); p != "" {
		platforms = strings.Split(p, ",")
	}

	opts := syncengine.Options{
		DryRun:          c.Bool("dry-run"),
		StockCheckOnly:  c.Bool("stock-check-only"),
		SkipCacheUpdate: c.Bool("skip-cache-update"),
		MaxItems:        c.Int("max-items"),
		Platforms:       platforms,
	}

	runErr := rt.RunForever(func(tok *shutdown.Token) error {
		result, err := engine.Run(tok, opts)
		for _, e := range result.Errors {
			logger.Warn("syncdaemon", e.Error())
		}
		logger.Stats("asins_refreshed", result.ASINsRefreshed)
		logger.Stats("asins_api_error", result.ASINsAPIError)
		if err != nil {
			return err
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("syncdaemon: cycle completed with %d errors", len(result.Errors))
		}
		return nil
	})
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}
