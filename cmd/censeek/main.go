/*
Package main is the entry point for the censeek command-line application.

censeek discovers hostnames belonging to a target domain using the Censys
Search API. Its primary functionalities include:
  - Collecting subdomains from the hosts index (forward and reverse DNS
    names) and the certificates index (CN and SAN names).
  - Aggregating both sources into one result set per hostname, with
    wildcard entries folded into their base domains.
  - Writing results as JSON or plain text and maintaining a master list of
    known domains across runs.
  - Showing the authenticated account's quota.

The application uses the Cobra library for command-line interface structure
and flag parsing. It leverages several internal packages:
  - `internal/censys`: For the Search API client, query builders, and retry
    handling.
  - `internal/pipeline`: For the concurrent discovery run joining both
    indexes.
  - `internal/process`: For the matching, aggregation, and wildcard
    expansion logic.
  - `internal/masterlist` and `internal/output`: For the on-disk artifacts.
  - `internal/metrics`: For exposing Prometheus metrics.

Graceful shutdown is handled via context cancellation triggered by OS
signals (SIGINT, SIGTERM).
*/
package main

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/x-stp/censeek/internal/censys"
	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/masterlist"
	"github.com/x-stp/censeek/internal/metrics"
	"github.com/x-stp/censeek/internal/output"
	"github.com/x-stp/censeek/internal/pipeline"
	"github.com/x-stp/censeek/internal/util"
)

const version = "1.0.0"

// Global flags (persistent across commands)
var (
	debug       bool
	quiet       bool
	metricsPort int
)

// Flags specific to the collect command
var (
	collectDomain     string
	collectDataType   string
	collectDays       int
	collectMaxPages   int
	collectPageSize   int
	collectFormat     string
	collectOutput     string
	collectMetadata   bool
	collectUnified    bool
	collectNoExpand   bool
	collectSummary    bool
	collectMasterPath string
	collectMasterMode string
)

// Flags specific to the masterlist command
var (
	masterResultsFile string
	masterListPath    string
	masterMode        string
)

var rootCmd = &cobra.Command{
	Use:   "censeek",
	Short: "censeek - subdomain discovery via the Censys Search API",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case quiet:
			log.SetOutput(io.Discard)
		case debug:
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Println("Debug logging enabled.")
		}
		if metricsPort > 0 {
			metrics.EnableMetrics()
			if err := metrics.StartMetricsServer(fmt.Sprintf(":%d", metricsPort)); err != nil {
				log.Printf("Failed to start metrics server: %v", err)
			}
		}
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Discover hostnames for a domain from DNS and certificate data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollect(cmd.Context())
	},
}

var masterlistCmd = &cobra.Command{
	Use:   "masterlist",
	Short: "Maintain the master domain list",
}

var masterlistUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Merge a JSON results file into the master list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMasterlistUpdate()
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the authenticated Censys account and quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAccount(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the censeek version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("censeek %s\n", version)
	},
}

func init() {
	// Persistent flags (available for all commands)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress log output")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "Expose Prometheus metrics on this port (0 disables)")

	// Flags for the collect command
	collectCmd.Flags().StringVarP(&collectDomain, "domain", "d", "", "Target domain pattern, plain or wildcard (required)")
	collectCmd.Flags().StringVarP(&collectDataType, "data-type", "t", "both", "Data sources to query: dns, certificate, or both")
	collectCmd.Flags().IntVar(&collectDays, "days", 0, "Only include records updated within this many days (0 for all)")
	collectCmd.Flags().IntVar(&collectMaxPages, "max-pages", 0, "Maximum result pages per source (0 for no limit)")
	collectCmd.Flags().IntVar(&collectPageSize, "page-size", censys.DefaultPageSize, "Results per API page")
	collectCmd.Flags().StringVarP(&collectFormat, "format", "f", "json", "Output format: json or text")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "Output file (defaults to results_<domain>.<ext>)")
	collectCmd.Flags().BoolVar(&collectMetadata, "metadata", false, "Include metadata columns in text output")
	collectCmd.Flags().BoolVar(&collectUnified, "unified", false, "Collapse JSON output to one entry per hostname with a sources list")
	collectCmd.Flags().BoolVar(&collectNoExpand, "no-expand-wildcards", false, "Keep wildcard hostnames instead of folding them into base domains")
	collectCmd.Flags().BoolVar(&collectSummary, "summary", true, "Print a console summary after the run")
	collectCmd.Flags().StringVar(&collectMasterPath, "masterlist", "", "Also merge results into this master list file")
	collectCmd.Flags().StringVar(&collectMasterMode, "masterlist-mode", "update", "Master list mode: update or replace")
	_ = collectCmd.MarkFlagRequired("domain")

	// Flags for the masterlist update command
	masterlistUpdateCmd.Flags().StringVarP(&masterResultsFile, "input", "i", "", "JSON results file to merge (required)")
	masterlistUpdateCmd.Flags().StringVarP(&masterListPath, "file", "f", "masterlist.txt", "Master list file")
	masterlistUpdateCmd.Flags().StringVarP(&masterMode, "mode", "m", "update", "Merge mode: update or replace")
	_ = masterlistUpdateCmd.MarkFlagRequired("input")

	// Add subcommands to the root command
	masterlistCmd.AddCommand(masterlistUpdateCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(masterlistCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, initiating shutdown...", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	metrics.ShutdownMetricsServer(context.Background())
}

// runCollect is the handler for the 'collect' command.
func runCollect(ctx context.Context) error {
	dataType, err := pipeline.ParseDataType(collectDataType)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(collectFormat)
	if err != nil {
		return err
	}

	apiClient, err := censys.NewClient(censys.Config{PageSize: collectPageSize})
	if err != nil {
		return err
	}

	results, stats, err := pipeline.Run(ctx, apiClient, pipeline.Options{
		Pattern:         collectDomain,
		DataType:        dataType,
		Days:            collectDays,
		MaxPages:        collectMaxPages,
		ExpandWildcards: !collectNoExpand,
	})
	if err != nil {
		return err
	}

	outPath := collectOutput
	if outPath == "" {
		outPath = util.ResultFilename(stats.Pattern, string(format))
	}
	if err := output.WriteFile(outPath, results, format, output.Options{Metadata: collectMetadata, Unified: collectUnified}); err != nil {
		return err
	}
	log.Printf("Wrote %d results to %s", stats.TotalMatches, outPath)

	if collectMasterPath != "" {
		mode, err := masterlist.ParseMode(collectMasterMode)
		if err != nil {
			return err
		}
		domains := make([]domain.Domain, 0, len(results))
		for _, m := range results {
			domains = append(domains, m.Hostname)
		}
		res, err := masterlist.Update(collectMasterPath, domains, mode)
		if err != nil {
			return err
		}
		log.Printf("Master list %s: %d domains (%d new)", collectMasterPath, len(res.Domains), len(res.Added))
	}

	if collectSummary {
		output.ConsoleSummary(os.Stdout, stats.Pattern, results)
	}
	return nil
}

// runMasterlistUpdate is the handler for 'masterlist update'.
func runMasterlistUpdate() error {
	mode, err := masterlist.ParseMode(masterMode)
	if err != nil {
		return err
	}
	domains, err := output.ParseResultsFile(masterResultsFile)
	if err != nil {
		return err
	}
	res, err := masterlist.Update(masterListPath, domains, mode)
	if err != nil {
		return err
	}
	fmt.Printf("Master list: %d domains (%d new, changed: %t)\n", len(res.Domains), len(res.Added), res.Changed)
	for _, d := range res.Added {
		fmt.Printf("  + %s\n", d.Name())
	}
	return nil
}

// runAccount is the handler for the 'account' command.
func runAccount(ctx context.Context) error {
	apiClient, err := censys.NewClient(censys.Config{})
	if err != nil {
		return err
	}
	info, err := apiClient.Account(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Account: %s (%s)\n", info.Login, info.Email)
	fmt.Printf("  Quota: %d / %d used\n", info.Quota.Used, info.Quota.Allowance)
	if info.Quota.ResetsAt != "" {
		fmt.Printf("  Resets at: %s\n", info.Quota.ResetsAt)
	}
	return nil
}
