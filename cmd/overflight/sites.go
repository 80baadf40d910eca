package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/overflight.report/internal/config"
	"github.com/banshee-data/overflight.report/internal/db"
)

const sitesUsage = `Usage: overflight sites <action>

Actions:
  list                  List registered sites
  add -name N -lat LAT -lon LON [flags]
                        Register a new site
  remove <name>         Delete a registered site
`

func runSitesCommand(args []string, registry *db.DB, out, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(stderr, sitesUsage)
		return fmt.Errorf("sites: missing action")
	}

	switch action, rest := args[0], args[1:]; action {
	case "list":
		return listSites(registry, out)
	case "add":
		return addSite(rest, registry, out, stderr)
	case "remove":
		if len(rest) != 1 {
			fmt.Fprint(stderr, sitesUsage)
			return fmt.Errorf("sites remove: expected exactly one site name")
		}
		site, err := registry.GetSiteByName(rest[0])
		if err != nil {
			return err
		}
		if err := registry.DeleteSite(site.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Removed site %q\n", site.Name)
		return nil
	default:
		fmt.Fprint(stderr, sitesUsage)
		return fmt.Errorf("unknown sites action: %s", action)
	}
}

func listSites(registry *db.DB, out io.Writer) error {
	sites, err := registry.ListSites()
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Fprintln(out, "No sites registered.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLATITUDE\tLONGITUDE\tRADIUS (m)\tCEILING (m)")
	for _, s := range sites {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.4f\t%.0f\t%.0f\n",
			s.ID, s.Name, s.Latitude, s.Longitude, s.Radius, s.MaxAltitude)
	}
	return tw.Flush()
}

func addSite(args []string, registry *db.DB, out, stderr io.Writer) error {
	fs := flag.NewFlagSet("sites add", flag.ContinueOnError)
	fs.SetOutput(stderr)

	site := &db.Site{}
	fs.StringVar(&site.Name, "name", "", "Unique site name (required)")
	fs.Float64Var(&site.Latitude, "lat", 0, "Latitude in degrees (required)")
	fs.Float64Var(&site.Longitude, "lon", 0, "Longitude in degrees (required)")
	fs.Float64Var(&site.Altitude, "alt", config.DefaultAltitude, "Ground altitude in meters")
	fs.Float64Var(&site.Radius, "radius", config.DefaultRadius, "Detection radius in meters")
	fs.Float64Var(&site.MaxAltitude, "max-alt", config.DefaultMaxAltitude, "Altitude ceiling in meters")
	noiseHigh := fs.Float64("noise-high", 0, "Slant distance for high noise, meters (0 uses the default)")
	noiseMedium := fs.Float64("noise-medium", 0, "Slant distance for medium noise, meters (0 uses the default)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	for _, required := range []string{"name", "lat", "lon"} {
		if !seen[required] {
			return fmt.Errorf("sites add: -%s is required", required)
		}
	}
	if seen["noise-high"] {
		site.NoiseHigh = noiseHigh
	}
	if seen["noise-medium"] {
		site.NoiseMedium = noiseMedium
	}

	if err := registry.CreateSite(site); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Registered site %q (id %d)\n", site.Name, site.ID)
	return nil
}
