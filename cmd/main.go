package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/config"
	"voice-stress/pkg/logging"
	"voice-stress/pkg/stress"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "voice-stress",
		Short:         "Estimate stress from a voice recording or free text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json or toml)")

	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newRecordCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func loadReference(path string) (stress.Reference, error) {
	if strings.TrimSpace(path) == "" {
		return stress.DefaultReference(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return stress.Reference{}, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer f.Close()
	return stress.LoadReference(f)
}

func newAnalyzer(cfg *config.Config) (*analysis.Analyzer, error) {
	ref, err := loadReference(cfg.Analysis.ReferenceFile)
	if err != nil {
		return nil, err
	}
	return analysis.NewDefault(ref)
}
