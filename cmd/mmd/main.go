// mmd is the market maker daemon: it builds the full quoting stack from
// a config file, runs it until SIGINT/SIGTERM, and speaks the systemd
// readiness and watchdog protocol when launched as a unit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"options-mm-go/config"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/internal/app"
	"options-mm-go/sim"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "config file path")
	underlying := flag.String("underlying", "", "quote only these configured underlyings (comma separated)")
	metricsAddr := flag.String("metrics-addr", "", "override the metrics listen address")
	feedAddr := flag.String("feed-addr", "", "override the event feed listen address")
	dryRun := flag.Bool("dry-run", false, "build the stack from config, print the listing summary, and exit")
	flag.Parse()

	if err := run(*cfgPath, *underlying, *metricsAddr, *feedAddr, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "mmd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, underlying, metricsAddr, feedAddr string, dryRun bool) error {
	cfg, err := config.LoadWithEnvOverrides(cfgPath)
	if err != nil {
		return err
	}
	if err := filterUnderlyings(&cfg, underlying); err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
	if feedAddr != "" {
		cfg.Feed.Enabled = true
		cfg.Feed.Addr = feedAddr
	}

	a, err := app.NewFromConfig(cfg, app.Options{Pricer: sim.NewModel()})
	if err != nil {
		return err
	}
	if err := a.Build(); err != nil {
		return err
	}
	if dryRun {
		printBootSummary(cfgPath, cfg)
		fmt.Println(indentLines(a.Chain().StatsString(), "  "))
		a.Logger().Close()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	log := a.Logger()

	if cfg.HotReload.Enabled {
		watcher, werr := config.NewWatcher(cfgPath, cfg.HotReload, a.ApplyConfig, func(err error) {
			log.LogError(err, "config_reload", nil)
		})
		if werr != nil {
			// Trading continues on the boot config.
			log.LogError(werr, "config_watch", nil)
		} else if werr = watcher.Start(ctx); werr != nil {
			log.LogError(werr, "config_watch", nil)
		} else {
			defer watcher.Stop()
		}
	}

	notifySystemd(ctx, a, log)

	<-ctx.Done()
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	return a.Stop()
}

// filterUnderlyings restricts the configured underlyings to the named
// ones. Naming an unconfigured underlying is an error rather than an
// empty book.
func filterUnderlyings(cfg *config.AppConfig, csv string) error {
	if csv == "" {
		return nil
	}
	keep := make(map[string]config.UnderlyingConfig)
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		uc, ok := cfg.Underlyings[name]
		if !ok {
			return fmt.Errorf("underlying %s not in config", name)
		}
		keep[name] = uc
	}
	if len(keep) > 0 {
		cfg.Underlyings = keep
	}
	return nil
}

func printBootSummary(cfgPath string, cfg config.AppConfig) {
	listings, err := cfg.Listings()
	if err != nil {
		fmt.Printf("listings: %v\n", err)
		return
	}
	fmt.Printf("config %s OK (env %s)\n", cfgPath, cfg.Env)
	fmt.Printf("  underlyings %s\n", strings.Join(cfg.UnderlyingNames(), ", "))
	fmt.Printf("  contracts   %d\n", len(listings))
	fmt.Printf("  cadence     quote %s, risk %s\n", cfg.Engine.QuoteInterval(), cfg.Engine.RiskInterval())
	fmt.Printf("  metrics     %s\n", onOff(cfg.Metrics.Enabled, cfg.Metrics.Addr))
	fmt.Printf("  feed        %s\n", onOff(cfg.Feed.Enabled, cfg.Feed.Addr))
	fmt.Printf("  journal     %s\n", onOff(cfg.Journal.Enabled, cfg.Journal.Path))
}

func onOff(enabled bool, detail string) string {
	if !enabled {
		return "off"
	}
	return detail
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// notifySystemd flags readiness and keeps the watchdog fed for as long
// as the app reports healthy. Outside systemd both calls are no-ops.
func notifySystemd(ctx context.Context, a *app.App, log *logger.Logger) {
	daemon.SdNotify(false, daemon.SdNotifyReady)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		tick := time.NewTicker(interval / 2)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if err := a.HealthCheck(); err != nil {
					// Skipping the ping lets systemd restart a stuck unit.
					log.LogError(err, "watchdog", nil)
					continue
				}
				daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}
