package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"statuswatch/internal/source"
)

func newServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Print the services that would be monitored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, unknown := source.Select(cfg.Monitor)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTITLE\tKIND\tURL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, e.Title, e.Kind, e.URL)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if len(unknown) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown keys in only/disable: %s\n", strings.Join(unknown, ", "))
			}
			return nil
		},
	}
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <service>",
		Short: "Fetch one service once and print the normalized reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			descs, _, err := source.Descriptors(cfg.Monitor, source.NewClient(cfg.Monitor.UserAgentOrDefault()))
			if err != nil {
				return err
			}
			for _, d := range descs {
				if d.Key != args[0] {
					continue
				}
				fetch, _ := cfg.Monitor.Timeouts()
				ctx, cancel := context.WithTimeout(cmd.Context(), fetch)
				defer cancel()
				r, err := d.Source.Fetch(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", d.Key, err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "service:   %s (%s)\n", d.Title, d.Key)
				fmt.Fprintf(out, "indicator: %s\n", r.Indicator)
				fmt.Fprintf(out, "severity:  %s\n", r.Severity)
				fmt.Fprintf(out, "summary:   %s\n", r.Summary)
				if r.Detail != "" {
					fmt.Fprintf(out, "detail:\n%s\n", r.Detail)
				}
				for _, m := range r.Metrics {
					fmt.Fprintf(out, "metric:    %s = %s\n", m.Name, m.Value)
				}
				return nil
			}
			return fmt.Errorf("unknown service %q (see statuswatch services)", args[0])
		},
	}
}
