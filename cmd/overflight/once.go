package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/config"
	"github.com/banshee-data/overflight.report/internal/cpa"
	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/opensky"
	"github.com/banshee-data/overflight.report/internal/pipeline"
	"github.com/banshee-data/overflight.report/internal/units"
)

// once runs a single fetch and prediction cycle and prints the ranked
// passes followed by the alert status.
func once(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var registry *db.DB
	if cfg.GetSiteName() != "" {
		var err error
		registry, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			return fmt.Errorf("failed to open site registry: %w", err)
		}
		defer registry.Close()
	}

	site, err := resolveSite(cfg, registry)
	if err != nil {
		return err
	}

	states, err := newFeedClient(cfg).FetchStates(ctx, site)
	if err != nil {
		return err
	}
	events := pipeline.ProcessReports(site, states)
	status := alerting.Evaluate(alerting.Nearest(events), cfg.GetThresholds(), cfg.GetInversionPolicy())

	printPasses(out, site, states, events, cfg.GetUnits())
	fmt.Fprintf(out, "\n[%s] %s\n%s\n", status.Stage, status.Title, status.Message)
	return nil
}

func printPasses(out io.Writer, site geo.Site, states []opensky.StateVector, events []cpa.PassEvent, speedUnits string) {
	fmt.Fprintf(out, "Site %s (%.4f, %.4f), radius %.0f m: %d reports, %d passes\n",
		site.Name, site.Latitude, site.Longitude, site.Radius, len(states), len(events))
	if len(events) == 0 {
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "AIRCRAFT\tETA\tDURATION\tCLOSEST (m)\tSPEED (%s)\tNOISE\n", speedUnits)
	for _, e := range events {
		speed := "--"
		if e.Plane.Speed != nil {
			speed = fmt.Sprintf("%.0f", units.ConvertSpeed(*e.Plane.Speed, speedUnits))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\t%s\n",
			e.Plane.Name(),
			alerting.FormatSeconds(e.ETA),
			alerting.FormatSeconds(e.Duration),
			e.DMin,
			speed,
			alerting.LevelLabel(e.Level))
	}
	tw.Flush()
}
