package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/audio"
	"voice-stress/pkg/models"
)

type outputOptions struct {
	json        bool
	diagnostics bool
}

func newAnalyzeCmd() *cobra.Command {
	var (
		file string
		text string
		out  outputOptions
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an audio file or a piece of text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (text == "") {
				return errors.New("exactly one of --file or --text is required")
			}
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}

			in := analysis.Input{Text: text, Diagnostics: out.diagnostics}
			if file != "" {
				// any decodable container is fine from the command line
				wave, err := audio.NewRegistry(nil).DecodeFile(file)
				if err != nil {
					return err
				}
				in.Waveform = wave
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Analysis.Timeout)
			defer cancel()
			resp, err := analyzer.Analyze(ctx, in)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), resp, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "audio file to analyze (.opus or .wav)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to analyze")
	cmd.Flags().BoolVar(&out.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&out.diagnostics, "diagnostics", false, "include intermediate voice statistics")
	return cmd
}

func categoryColor(category string) *color.Color {
	c, ok := models.ParseCategory(category)
	if !ok {
		return color.New(color.Reset)
	}
	switch c {
	case models.VeryLow, models.Low:
		return color.New(color.FgGreen)
	case models.Moderate:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printResult(w io.Writer, resp *models.StressResponse, out outputOptions) error {
	if out.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "Stress level: %.1f\n", resp.StressLevel)
	fmt.Fprintf(w, "Category:     %s\n", categoryColor(resp.Category).Sprint(resp.Category))
	if resp.Gender != "" {
		fmt.Fprintf(w, "Pitch baseline: %s\n", resp.Gender)
	}
	if d := resp.Diagnostics; d != nil {
		faint := color.New(color.Faint)
		faint.Fprintf(w, "  mean F0 %.1f Hz (sd %.1f), voiced %d/%d frames\n", d.MeanF0, d.StdF0, d.VoicedFrames, d.TotalFrames)
		faint.Fprintf(w, "  mean energy %.4f (sd %.4f)\n", d.MeanEnergy, d.StdEnergy)
		faint.Fprintf(w, "  tempo %.1f BPM, speaking rate %.2f/s\n", d.Tempo, d.SpeakingRate)
		faint.Fprintf(w, "  z pitch %.2f, z rate %.2f, z energy %.2f, raw %.3f\n", d.ZPitch, d.ZRate, d.ZEnergy, d.RawScore)
	}
	return nil
}

func writeWAV(path string, wave *models.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := audio.EncodeWAV(f, wave.Samples, wave.SampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
