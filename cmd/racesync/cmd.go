package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/padraicbc/hippodash/reconcile"
	"github.com/padraicbc/hippodash/scheduler"
)

// env is what a run needs once connected.
type env struct {
	syncer       scheduler.Runner
	defaultVenue string
	close        func()
}

type setupFunc func(ctx context.Context, verbose bool) (*env, error)

type runOptions struct {
	date    string
	venue   string
	create  bool
	format  string
	verbose bool
}

func newRootCommand(setup setupFunc, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "racesync",
		Short:         "Reconcile stored races and results with the programme feed",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCommand(setup, out))
	return root
}

func newRunCommand(setup setupFunc, out io.Writer) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync pass and print its report",
		Long: `Run one sync pass for a racing day and print the report.

Examples:
  # Fill in today's results for the default venue token
  racesync run

  # Sync a past day and create any races the feed lists
  racesync run --date 2024-05-12 --create`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), setup, out, opts)
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "racing day as YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&opts.venue, "venue", "", "feed venue token (default SYNC_DEFAULT_VENUE)")
	cmd.Flags().BoolVar(&opts.create, "create", false, "create races missing from the database")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format (json|text)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runSync(ctx context.Context, setup setupFunc, out io.Writer, opts *runOptions) error {
	if opts.format != "json" && opts.format != "text" {
		return fmt.Errorf("invalid format %q: must be json or text", opts.format)
	}

	day := time.Now().UTC()
	if opts.date != "" {
		d, err := time.Parse(time.DateOnly, opts.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", opts.date)
		}
		day = d
	}

	e, err := setup(ctx, opts.verbose)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if e.close != nil {
		defer e.close()
	}

	venue := opts.venue
	if venue == "" {
		venue = e.defaultVenue
	}

	rep, runErr := e.syncer.Run(ctx, reconcile.Options{Date: day, Venue: venue, AutoCreate: opts.create})
	if rep != nil {
		if err := printReport(out, rep, opts.format); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if rep == nil || !rep.Success {
		return errors.New("sync did not succeed")
	}
	return nil
}

func printReport(out io.Writer, rep *reconcile.Report, format string) error {
	if format == "text" {
		_, err := fmt.Fprintln(out, rep.Message)
		for _, nf := range rep.NotFound {
			if err != nil {
				break
			}
			_, err = fmt.Fprintf(out, "  not found: %s R%d %s\n", nf.Venue, nf.Number, nf.Name)
		}
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
