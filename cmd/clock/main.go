package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gomcp-clock/internal/app"
	"gomcp-clock/internal/config"
	"gomcp-clock/internal/probe"
)

func main() {
	cfgPath := config.DefaultPath()

	root := &cobra.Command{
		Use:           "clock",
		Short:         "clock: MCP server exposing the time/now tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgPath, false)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "path to config file")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(stdioCmd(&cfgPath))
	root.AddCommand(checkCmd(&cfgPath))
	root.AddCommand(callsCmd(&cfgPath))
	root.AddCommand(configCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	var withTUI bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over streamable HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*cfgPath, withTUI)
		},
	}
	cmd.Flags().BoolVar(&withTUI, "tui", false, "show the live dashboard")
	return cmd
}

func stdioCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Run as an MCP server over stdio (for MCP-compatible clients)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := app.WithSignals()
			defer cancel()
			return app.RunStdio(ctx, cfg)
		},
	}
}

func checkCmd(cfgPath *string) *cobra.Command {
	var (
		opts    probe.Options
		asJSON  bool
		command []string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe a running clock server with a real MCP client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.URL == "" && len(command) == 0 {
				cfg, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				opts.URL = cfg.URL()
				if opts.AuthToken == "" {
					opts.AuthToken = cfg.AuthToken
				}
			}
			if len(command) > 0 {
				opts.Command, opts.Args = command[0], command[1:]
			}

			ctx, cancel := app.WithSignals()
			defer cancel()
			res, err := probe.Check(ctx, opts)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:   %s %s (protocol %s)\n", res.ServerName, res.ServerVersion, res.ProtocolVersion)
			fmt.Fprintf(out, "tools:    %v\n", res.Tools)
			fmt.Fprintf(out, "%s: %s (%s)\n", res.Tool, res.Output, res.Latency.Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "MCP endpoint URL (default from config)")
	cmd.Flags().StringVar(&opts.AuthToken, "token", "", "bearer token")
	cmd.Flags().StringSliceVar(&command, "command", nil, "spawn a stdio server instead, e.g. --command clock,stdio")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "tool to call (default time/now)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "overall probe timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func callsCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Print the most recent audited tool calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			calls, err := app.RecentCalls(cmd.Context(), cfg, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(calls) == 0 {
				fmt.Fprintln(out, "no calls recorded")
				return nil
			}
			for _, c := range calls {
				res := c.Result
				if c.Status == "error" {
					res = c.Error
				}
				fmt.Fprintf(out, "%s  %-9s %-5s %-7s %4dms  %s\n",
					c.CreatedAt.Format(time.RFC3339), c.Tool, c.Transport, c.Status, c.DurationMs, res)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of calls to show")
	return cmd
}

func configCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout())
		},
	}
}

func serve(cfgPath string, withTUI bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := app.WithSignals()
	defer cancel()

	if withTUI {
		return app.RunTUI(ctx, cfg)
	}
	return app.RunHeadless(ctx, cfg)
}
