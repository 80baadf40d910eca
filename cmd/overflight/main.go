// Command overflight predicts aircraft passes over an observation site from
// the OpenSky feed and serves the staged alert over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/overflight.report/internal/config"
	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/version"
)

const usage = `Usage: overflight [flags] <command>

Commands:
  serve                 Poll the feed and serve the API (default)
  once                  Run a single poll cycle and print the result
  migrate up|down|status
                        Manage the site registry schema
  sites list|add|remove
                        Manage registered observation sites

Flags:
`

// options are the global flags shared by every subcommand.
type options struct {
	configPath   string
	listen       string
	dbPath       string
	siteName     string
	units        string
	feedURL      string
	pollInterval string
	showVersion  bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, *config.Config, error) {
	fs := flag.NewFlagSet("overflight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to a JSON config file (built-in defaults when empty)")
	fs.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides config)")
	fs.StringVar(&opts.dbPath, "db", "", "Site registry database path (overrides config)")
	fs.StringVar(&opts.siteName, "site", "", "Registered site name to poll (overrides config)")
	fs.StringVar(&opts.units, "units", "", "Speed units for API output (overrides config)")
	fs.StringVar(&opts.feedURL, "feed-url", "", "OpenSky states endpoint (overrides config)")
	fs.StringVar(&opts.pollInterval, "poll-interval", "", "Base poll interval, e.g. 10s (overrides config)")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}

	cfg := &config.Config{}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = loaded
	}

	override := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	override(&cfg.Listen, opts.listen)
	override(&cfg.DBPath, opts.dbPath)
	override(&cfg.SiteName, opts.siteName)
	override(&cfg.Units, opts.units)
	override(&cfg.FeedURL, opts.feedURL)
	override(&cfg.PollInterval, opts.pollInterval)
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return opts, fs.Args(), cfg, nil
}

// run dispatches a subcommand. It returns when the command finishes or ctx
// is cancelled.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, rest, cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	command := "serve"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	switch command {
	case "serve":
		return serve(ctx, cfg)
	case "once":
		return once(ctx, cfg, stdout)
	case "migrate":
		database, err := db.OpenDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		return db.RunMigrateCommand(rest, database, stdout)
	case "sites":
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		return runSitesCommand(rest, database, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// resolveSite picks the registry site named in cfg, or the configured
// site when no name is set.
func resolveSite(cfg *config.Config, registry *db.DB) (geo.Site, error) {
	name := cfg.GetSiteName()
	if name == "" {
		return cfg.GetSite(), nil
	}
	if registry == nil {
		return geo.Site{}, fmt.Errorf("site %q requested but no registry is open", name)
	}
	row, err := registry.GetSiteByName(name)
	if err != nil {
		return geo.Site{}, err
	}
	return row.GeoSite(), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatalf("overflight: %v", err)
	}
}
