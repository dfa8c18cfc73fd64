package cli

import (
	"github.com/spf13/cobra"

	"github.com/lotekdan/go-browser-inventory/internal/config"
)

// scanFlagSet tracks scan flags before they are converted into config overrides.
type scanFlagSet struct {
	browsers   []string
	users      []string
	root       string
	os         string
	jsonOutput bool
	format     string
	database   string
	riskReport bool
	riskURL    string
	logFile    string
	logLevel   string
	debug      bool
}

func bindScanFlags(cmd *cobra.Command, flags *scanFlagSet) {
	cmd.Flags().StringSliceVar(&flags.browsers, "browser", nil, "Browsers to scan (Chrome, Edge, Firefox); repeat or comma-separate")
	cmd.Flags().StringSliceVar(&flags.users, "user", nil, "Accounts to scan; defaults to every local account")
	cmd.Flags().StringVar(&flags.root, "root", "", "Scan a mounted image rooted at this directory")
	cmd.Flags().StringVar(&flags.os, "os", "", "OS layout to assume: windows, darwin, or linux")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text or json")
	cmd.Flags().StringVar(&flags.database, "db", "", "Write the scan snapshot to this SQLite file")
	cmd.Flags().BoolVar(&flags.riskReport, "risk-report", false, "Look up a risk score for each extension")
	cmd.Flags().StringVar(&flags.riskURL, "risk-url", "", "Base URL of the risk report API")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to this file instead of stderr")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug output")
}

func (f scanFlagSet) toOverrides(cmd *cobra.Command) config.Overrides {
	ov := config.Overrides{}
	if cmd.Flags().Changed("browser") {
		ov.Browsers = f.browsers
	}
	if cmd.Flags().Changed("user") {
		ov.Users = f.users
	}
	if cmd.Flags().Changed("root") {
		ov.Root = f.root
	}
	if cmd.Flags().Changed("os") {
		ov.OS = f.os
	}
	if cmd.Flags().Changed("format") {
		ov.Format = f.format
	}
	if f.jsonOutput {
		ov.Format = "json"
	}
	if cmd.Flags().Changed("db") {
		ov.Database = f.database
	}
	if cmd.Flags().Changed("risk-report") {
		ov.RiskReport = &f.riskReport
	}
	if cmd.Flags().Changed("risk-url") {
		ov.RiskURL = f.riskURL
	}
	if cmd.Flags().Changed("log-file") {
		ov.LogFile = f.logFile
	}
	if cmd.Flags().Changed("log-level") {
		ov.LogLevel = f.logLevel
	}
	if f.debug {
		ov.LogLevel = "debug"
	}
	return ov
}
