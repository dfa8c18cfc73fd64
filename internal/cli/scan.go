package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lotekdan/go-browser-inventory/db"
	"github.com/lotekdan/go-browser-inventory/internal/browsers"
	"github.com/lotekdan/go-browser-inventory/internal/config"
	"github.com/lotekdan/go-browser-inventory/internal/logging"
	"github.com/lotekdan/go-browser-inventory/internal/riskreport"
)

// record is one extension as reported, with its optional risk lookup
type record struct {
	browsers.Extension
	RiskReport *riskreport.Report `json:"riskReport,omitempty"`
}

type output struct {
	Extensions []record `json:"extensions"`
	Total      int      `json:"total"`
	ScanID     string   `json:"scanId,omitempty"`
}

func newScanCmd(loader *config.Loader) *cobra.Command {
	flags := &scanFlagSet{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List installed extensions for every detected browser and account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load(flags.toOverrides(cmd))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, flags.debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting", zap.String("os", cfg.TargetOS()), zap.String("root", cfg.Root))
			defer logger.Info("Exiting")

			out, err := runScan(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			if strings.EqualFold(cfg.Format, "json") {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeText(cmd.OutOrStdout(), out)
		},
	}

	bindScanFlags(cmd, flags)

	return cmd
}

func newLogger(cfg config.Config, debug bool) (*zap.Logger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.LogFile != "" {
		logCfg = logging.FileConfig(cfg.LogFile, cfg.LogLevel)
	}
	logCfg.Level = cfg.LogLevel
	logCfg.Development = debug && cfg.LogFile == ""
	return logging.New(logCfg)
}

func runScan(ctx context.Context, cfg config.Config, logger *zap.Logger) (output, error) {
	families, err := cfg.Families()
	if err != nil {
		return output{}, err
	}

	paths := browsers.NewPathResolver(cfg.TargetOS(), cfg.Root)
	sc := browsers.NewScanContext(paths, browsers.ContextOptions{
		Usernames: cfg.Users,
		Only:      families,
	}, logger)
	extensions := browsers.NewBrowserInventory(sc, logger).Scan()

	out := output{
		Extensions: make([]record, 0, len(extensions)),
		Total:      len(extensions),
	}

	var client *riskreport.Client
	if cfg.RiskReport {
		client = riskreport.NewClient(cfg.RiskURL, riskreport.DefaultOptions())
	}
	for _, ext := range extensions {
		rec := record{Extension: ext}
		if client != nil {
			report, err := client.Report(ctx, ext.ID, ext.Version, ext.Browser)
			if err != nil {
				logger.Warn("risk lookup failed", zap.String("id", ext.ID), zap.String("version", ext.Version), zap.Error(err))
			}
			rec.RiskReport = report
		}
		out.Extensions = append(out.Extensions, rec)
	}

	if cfg.Database != "" {
		store, err := db.NewDB(cfg.Database)
		if err != nil {
			return output{}, err
		}
		defer store.Close()

		scanID, err := store.SaveScan(extensions)
		if err != nil {
			return output{}, err
		}
		logger.Info("scan saved", zap.String("database", cfg.Database), zap.String("scanId", scanID))
		out.ScanID = scanID
	}

	return out, nil
}
