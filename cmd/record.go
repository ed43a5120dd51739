package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/audio/capture"
)

func newRecordCmd() *cobra.Command {
	var (
		seconds float64
		outFile string
		out     outputOptions
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the default microphone and analyze the recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rec, err := capture.NewRecorder()
			if err != nil {
				return err
			}
			defer rec.Close()

			log.WithField("seconds", seconds).Info("recording")
			wave, err := rec.Record(ctx, time.Duration(seconds*float64(time.Second)))
			if err != nil {
				return err
			}
			if outFile != "" {
				if err := writeWAV(outFile, wave); err != nil {
					return err
				}
				log.WithField("path", outFile).Info("recording saved")
			}

			actx, cancel := context.WithTimeout(ctx, cfg.Analysis.Timeout)
			defer cancel()
			resp, err := analyzer.Analyze(actx, analysis.Input{Waveform: wave, Diagnostics: out.diagnostics})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), resp, out)
		},
	}
	cmd.Flags().Float64VarP(&seconds, "seconds", "s", 5, "recording length in seconds")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "also save the recording as a WAV file")
	cmd.Flags().BoolVar(&out.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&out.diagnostics, "diagnostics", false, "include intermediate voice statistics")
	return cmd
}
