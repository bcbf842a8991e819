package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geekwala/security-scan-action/pkg/action"
	"github.com/geekwala/security-scan-action/pkg/etc"
	"github.com/geekwala/security-scan-action/pkg/ext"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

var (
	// Default wise GoReleaser sets three ldflags:
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errNotPassed is returned once the outcome has been reported to the workflow.
var errNotPassed = errors.New("scan did not pass")

func main() {
	log.SetOutput(os.Stdout)
	log.SetLevel(etc.GetLogLevel())
	log.SetReportCaller(false)
	switch etc.GetLogFormat() {
	case etc.LogFormatGitHub:
		log.SetFormatter(&action.WorkflowFormatter{})
	case etc.LogFormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	info := etc.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	if err := newRootCmd(info).Execute(); err != nil {
		if !errors.Is(err, errNotPassed) {
			log.Errorf("Error: %v", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(info etc.BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "geekwala-scan",
		Short:         "Scan dependency files for known vulnerabilities with GeekWala",
		Long:          "Submits a dependency manifest or lockfile to the GeekWala vulnerability scan API, reports the findings and fails the build when the risk gate is not met.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newScanCmd(info))
	rootCmd.AddCommand(newVersionCmd(info))
	return rootCmd
}

func newScanCmd(info etc.BuildInfo) *cobra.Command {
	var (
		filePath          string
		workspace         string
		outputFormat      string
		sarifFile         string
		jsonFile          string
		severityThreshold string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a dependency file",
		Long:  "Scan a dependency file. Inputs are read from INPUT_* environment variables the way GitHub Actions provides them; flags take precedence.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := action.NewRunner(info, ext.DefaultAmbassador, cmd.OutOrStdout())

			config, err := etc.GetConfig()
			if err != nil {
				err = fmt.Errorf("getting config: %w", err)
				runner.Fail(err, action.NewOutputs(os.Getenv("GITHUB_OUTPUT"), ext.DefaultAmbassador), os.Getenv("GITHUB_STEP_SUMMARY"))
				return errNotPassed
			}

			flags := cmd.Flags()
			overrides := []struct {
				name   string
				value  string
				target *string
			}{
				{"file-path", filePath, &config.Input.FilePath},
				{"workspace", workspace, &config.Input.Workspace},
				{"output-format", outputFormat, &config.Report.OutputFormat},
				{"sarif-file", sarifFile, &config.Report.SARIFFile},
				{"json-file", jsonFile, &config.Report.JSONFile},
				{"severity-threshold", severityThreshold, &config.Gate.SeverityThreshold},
			}
			for _, o := range overrides {
				if flags.Changed(o.name) {
					*o.target = o.value
				}
			}

			log.WithFields(log.Fields{
				"version":  info.Version,
				"commit":   info.Commit,
				"built_at": info.Date,
			}).Debug("Starting geekwala-scan")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			status, err := runner.Run(ctx, config)
			if err != nil || status != risk.StatusPass {
				return errNotPassed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file-path", "", "Dependency file to scan, relative to the workspace (auto-detected when empty)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace directory (defaults to GITHUB_WORKSPACE)")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "Comma separated output formats: summary, json, table")
	cmd.Flags().StringVar(&sarifFile, "sarif-file", "", "Write a SARIF report to this path")
	cmd.Flags().StringVar(&jsonFile, "json-file", "", "Write the JSON report to this path instead of stdout")
	cmd.Flags().StringVar(&severityThreshold, "severity-threshold", "", "Minimum severity that fails the scan: none, low, medium, high, critical")

	return cmd
}

func newVersionCmd(info etc.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geekwala-scan %s (commit %s, built at %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}
