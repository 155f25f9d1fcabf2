package main

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.ngs.io/woa-api/internal/adapter/fetch"
	"go.ngs.io/woa-api/internal/adapter/store"
	"go.ngs.io/woa-api/internal/adapter/store/csv"
	"go.ngs.io/woa-api/internal/adapter/store/netcdf"
	"go.ngs.io/woa-api/internal/config"
	"go.ngs.io/woa-api/internal/domain"
	"go.ngs.io/woa-api/internal/usecase"
)

const version = "0.1.0"

// options holds the flags shared by every subcommand.
type options struct {
	configPath  string
	downloadDir string
	baseURL     string
	offline     bool
	logLevel    string

	variable   string
	span       string
	resolution string
	field      string
	timeCode   string
}

func (o *options) archive() domain.ArchiveSelector {
	return domain.ArchiveSelector{Variable: o.variable, Span: o.span, Resolution: o.resolution}
}

func (o *options) request() usecase.GridRequest {
	return usecase.GridRequest{
		Archive:  o.archive(),
		Selector: domain.Selector{Field: domain.FieldCode(o.field), Time: domain.TimeCode(o.timeCode)},
	}
}

// setup resolves configuration and builds the file source and use case.
func (o *options) setup(cmd *cobra.Command) (store.FileSource, *usecase.ClimatologyUseCase, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.DownloadDir = o.downloadDir
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if flags.Changed("offline") {
		cfg.Offline = o.offline
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log := cfg.Logger()
	log.SetOutput(cmd.ErrOrStderr())

	var files store.FileSource
	ledger := fetch.NewLedger(cfg.DownloadDir)
	if cfg.Offline {
		files = fetch.DirSource{Dir: cfg.DownloadDir}
	} else {
		fetcher := fetch.NewFetcher(cfg.DownloadDir, cfg.BaseURL, log)
		ledger = fetcher.Ledger
		files = fetcher
	}
	return files, usecase.NewClimatologyUseCase(files, csv.NewGridLoader(log), ledger, log), nil
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "woa",
		Short: "Work with World Ocean Atlas 2023 CSV climatologies.",
		Long: `woa downloads WOA23 CSV archives and loads a field of an archive into a
(lat, lon, depth, time) grid. Use the subcommands below to fetch archives,
inspect grids, extract profiles, export grids to NetCDF or compute volume means.

Settings are read from the TOML file given with --config and from the
WOA_DOWNLOAD_DIR, WOA_BASE_URL, WOA_OFFLINE and LOG_LEVEL environment
variables; command-line flags take precedence.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "TOML configuration file")
	pf.StringVar(&o.downloadDir, "dir", "", "archive download directory")
	pf.StringVar(&o.baseURL, "base-url", "", "WOA23 data root URL")
	pf.BoolVar(&o.offline, "offline", false, "use only archives already extracted in the download directory")
	pf.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVarP(&o.variable, "variable", "v", "t", "variable code (t s i n p o O A)")
	pf.StringVarP(&o.span, "span", "t", "decav", "time span code, e.g. decav, all, A5B4")
	pf.StringVarP(&o.resolution, "resolution", "r", "1.00", "grid resolution (0.25, 1.00, 5.00)")
	pf.StringVar(&o.field, "field", "an", "statistical field code, e.g. an, mn, sd")
	pf.StringVar(&o.timeCode, "time", "00", "time code: 00 (annual), 01-12 (monthly), 13-16 (seasonal)")

	root.AddCommand(
		newVersionCmd(),
		newFetchCmd(o),
		newLoadCmd(o),
		newProfileCmd(o),
		newExportCmd(o),
		newMeanCmd(o),
		newCiteCmd(o),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "woa v%s\n", version)
		},
		DisableAutoGenTag: true,
	}
}

func newFetchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract an archive",
		Long: `fetch downloads the archive selected by --variable, --span and --resolution
unless it is already present, extracts it and prints the CSV file paths.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, _, err := o.setup(cmd)
			if err != nil {
				return err
			}
			paths, err := files.Files(cmd.Context(), o.archive())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
}

func newLoadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load a grid and print its summary",
		Long: `load builds the grid selected by --field and --time and prints its shape,
coverage, volume means and per-file diagnostics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, uc, err := o.setup(cmd)
			if err != nil {
				return err
			}
			s, err := uc.Summary(cmd.Context(), o.request())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archive:   %s\n", s.Meta.Archive)
			fmt.Fprintf(out, "field:     %s (%s)\n", s.Field, s.FieldName)
			fmt.Fprintf(out, "shape:     %d x %d x %d x %d (lat, lon, depth, time)\n", s.Shape[0], s.Shape[1], s.Shape[2], s.Shape[3])
			fmt.Fprintf(out, "coverage:  %.4f\n", s.Coverage)
			fmt.Fprintf(out, "skipped:   %d rows, %d values\n", s.SkippedRows, s.SkippedFields)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tROWS\tSKIPPED ROWS\tSKIPPED VALUES\tVOLUME MEAN\tFILE")
			for i, f := range s.Files {
				fmt.Fprintf(tw, "%02d\t%d\t%d\t%d\t%s\t%s\n", f.Slot, f.Rows, f.SkippedRows, f.SkippedFields, formatValue(s.VolumeMeans[i]), f.Path)
			}
			return tw.Flush()
		},
		DisableAutoGenTag: true,
	}
}

func newProfileCmd(o *options) *cobra.Command {
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print the depth profile nearest to a point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, uc, err := o.setup(cmd)
			if err != nil {
				return err
			}
			p, err := uc.Profile(cmd.Context(), o.request(), lat, lon)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nearest node: lat %.3f, lon %.3f\n", p.Lat, p.Lon)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			header := []string{"DEPTH (M)"}
			for _, t := range p.Time {
				header = append(header, fmt.Sprintf("T=%d", t))
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for k, depth := range p.Depth {
				row := []string{fmt.Sprintf("%g", depth)}
				for t := range p.Time {
					row = append(row, formatValue(p.Values[t][k]))
				}
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (degrees north)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude (degrees east)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newExportCmd(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a grid to a NetCDF file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, uc, err := o.setup(cmd)
			if err != nil {
				return err
			}
			lg, err := uc.Load(cmd.Context(), o.request())
			if err != nil {
				return err
			}
			meta := netcdf.Metadata{Variable: lg.Request.Archive.Variable, Field: lg.Request.Selector.Field}
			if err := netcdf.WriteGrid(out, lg.Grid, meta); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (variable %s)\n", out, meta.VarName())
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVarP(&out, "out", "o", "woa.nc", "output NetCDF path")
	return cmd
}

func newMeanCmd(o *options) *cobra.Command {
	var variables []string
	cmd := &cobra.Command{
		Use:   "mean",
		Short: "Print volume-weighted means of several variables",
		Long: `mean loads the selected field for every variable given with --vars in
parallel and prints the volume-weighted mean of each time slot.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, uc, err := o.setup(cmd)
			if err != nil {
				return err
			}

			reqs := make([]usecase.GridRequest, len(variables))
			for i, v := range variables {
				req := o.request()
				req.Archive.Variable = v
				reqs[i] = req
			}
			grids, err := uc.LoadMany(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tTIME\tVOLUME MEAN")
			for _, lg := range grids {
				for t, slot := range lg.Grid.Coords.Time {
					value := "-"
					if m, err := lg.Grid.VolumeMean(t); err == nil {
						value = fmt.Sprintf("%.6g", m)
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", lg.Request.Archive.Variable, slot, value)
				}
			}
			return tw.Flush()
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringSliceVar(&variables, "vars", []string{"t", "s"}, "comma-separated variable codes")
	return cmd
}

func newCiteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cite",
		Short: "Print the citation for the selected variable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, uc, err := o.setup(cmd)
			if err != nil {
				return err
			}
			c, err := uc.Citation(o.variable)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
		DisableAutoGenTag: true,
	}
}

func formatValue(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "-"
	}
	return fmt.Sprintf("%.6g", *v)
}
