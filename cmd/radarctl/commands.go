package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventradar/radar/internal/app"
	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/digest"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/models"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [source...]",
		Short: "Run extraction for the named sources, or every active source with --all",
		RunE:  cmdRun,
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale and duplicate events",
		Args:  cobra.NoArgs,
		RunE:  cmdCleanup,
	}

	digestCmd = &cobra.Command{
		Use:   "digest",
		Short: "Print the source health digest, optionally delivering it",
		Args:  cobra.NoArgs,
		RunE:  cmdDigest,
	}

	sourcesCmd = &cobra.Command{
		Use:   "sources",
		Short: "List the source registry",
		Args:  cobra.NoArgs,
		RunE:  cmdSources,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Show per-source health",
		Args:  cobra.NoArgs,
		RunE:  cmdHealth,
	}

	runCfg struct {
		All bool
	}
	cleanupCfg struct {
		DryRun bool
	}
	digestCfg struct {
		Send bool
	}
)

func init() {
	runCmd.Flags().BoolVar(&runCfg.All, "all", false, "run every active source")
	cleanupCmd.Flags().BoolVar(&cleanupCfg.DryRun, "dry-run", false, "print the plan without deleting")
	digestCmd.Flags().BoolVar(&digestCfg.Send, "send", false, "deliver the digest and failing-source alerts")
}

func cmdRun(cmd *cobra.Command, args []string) error {
	if runCfg.All == (len(args) > 0) {
		return fmt.Errorf("name sources or pass --all")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		var (
			report *ingestion.RunReport
			err    error
		)
		if runCfg.All {
			report, err = a.Pipeline.RunAll(ctx)
		} else {
			report, err = a.Pipeline.RunSources(ctx, args)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	})
}

func cmdCleanup(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := a.Cleanup.Run(ctx, cleanup.Options{DryRun: cleanupCfg.DryRun})
		if err != nil {
			return err
		}
		return printCleanup(cmd.OutOrStdout(), res)
	})
}

func cmdDigest(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		var (
			rep digest.Report
			err error
		)
		if digestCfg.Send {
			rep, err = a.Digest.Send(ctx)
		} else {
			rep, err = a.Digest.Build(ctx)
		}
		if err != nil {
			return err
		}
		text, err := digest.Render(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	})
}

func cmdSources(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return printSources(cmd.OutOrStdout(), a.Registry.All())
	})
}

func cmdHealth(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		records, err := a.Health.List(ctx, a.Registry.All())
		if err != nil {
			return err
		}
		return printHealth(cmd.OutOrStdout(), records)
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCleanup(w io.Writer, res cleanup.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tREASON\tSCORE\tKEPT\tTITLE")
	for _, r := range res.Plan.Removals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Date, r.Reason, r.Score, r.KeptID, r.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	verb := "deleted"
	if res.DryRun {
		verb = "would delete"
	}
	_, err := fmt.Fprintf(w, "\nscanned %d, %s %d (%d stale, %d duplicate), kept %d\n",
		res.Plan.Scanned, verb, len(res.Plan.Removals),
		res.Plan.Count(cleanup.ReasonStale), res.Plan.Count(cleanup.ReasonDuplicate), res.Plan.Kept)
	return err
}

func printSources(w io.Writer, descs []models.SourceDescriptor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTRATEGY\tACTIVE\tPROVIDER\tURL")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", d.Name, d.Strategy, d.Active, d.ProviderKey(), d.URL)
	}
	return tw.Flush()
}

func printHealth(w io.Writer, records []models.HealthRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tFOUND7D\tADDED7D\tLAST SUCCESS\tLAST ERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", r.Source, r.Status, r.Found7d, r.Added7d, stamp(r.LastSuccess), r.LastError)
	}
	return tw.Flush()
}

func stamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
