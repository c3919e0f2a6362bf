// CLI for energy-variance BPM estimation and the analysis web server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/nzoschke/energybpm/pkg/analysis"
	"github.com/nzoschke/energybpm/pkg/config"
	"github.com/nzoschke/energybpm/pkg/detector"
	"github.com/nzoschke/energybpm/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:           "app",
	Short:         "Energy-variance BPM estimation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var bpmCmd = &cobra.Command{
	Use:   "bpm <audio file>",
	Short: "Estimate the BPM of a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		windows, _ := cmd.Flags().GetBool("windows")
		return runBPM(cmd, args[0], asJSON, windows)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <directory>",
	Short: "Analyze audio files and create JSON sidecars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runAnalyze(cmd, args[0], force)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <audio file> <text file>",
	Short: "Decode audio and write mono samples as text, one per line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, args[0], args[1])
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	pf.String("log-level", "", "Log level: debug, info, warn, error, off")
	pf.Int("sample-rate", 0, "Samples per analysis window")
	pf.Int("block-size", 0, "Samples per energy block")
	pf.Int("block-count", 0, "Blocks per window")
	pf.Int("run-length", 0, "Consecutive loud blocks per beat")
	pf.Int("stride", 0, "Block cursor advance between windows (0 follows --sample-rate)")
	pf.Bool("file-rate", false, "Use each file's sample rate as the window length")

	bpmCmd.Flags().Bool("json", false, "Print the full analysis as JSON")
	bpmCmd.Flags().BoolP("windows", "w", false, "Print per-window diagnostics")
	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().String("music", "", "Music directory (default from config, music)")

	rootCmd.AddCommand(bpmCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	for name, dst := range map[string]*int{
		"sample-rate": &cfg.Detector.SampleRate,
		"block-size":  &cfg.Detector.BlockSize,
		"block-count": &cfg.Detector.BlockCount,
		"run-length":  &cfg.Detector.RunLength,
		"stride":      &cfg.Detector.Stride,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("file-rate") {
		cfg.UseFileRate, _ = flags.GetBool("file-rate")
	}

	return cfg, cfg.Validate()
}

func newAnalyzer(cfg config.Config, logger *log.Logger, opts ...analysis.Option) (*analysis.Analyzer, error) {
	opts = append([]analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithFileRate(cfg.UseFileRate),
	}, opts...)

	a, err := analysis.New(cfg.Detector, opts...)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	return a, nil
}

func runBPM(cmd *cobra.Command, path string, asJSON, windows bool) error {
	start := time.Now()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	samples, sampleRate, err := analysis.LoadAudioMono(path)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}
	logger.Debugf("loaded %d samples from %s", len(samples), path)

	out := cmd.OutOrStdout()

	if asJSON {
		ta := a.Analyze(path, samples, sampleRate)
		if ta.Error != "" {
			return fmt.Errorf("%s: %s", path, ta.Error)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ta)
	}

	result, err := a.AnalyzeSamples(samples, sampleRate)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if windows {
		printWindows(out, result.Windows)
	}
	fmt.Fprintf(out, "BPM = %d\n", result.BPM)

	elapsed := time.Since(start)
	fmt.Fprintf(out, "Time taken %d seconds %d milliseconds\n",
		elapsed.Milliseconds()/1000, elapsed.Milliseconds()%1000)
	return nil
}

func printWindows(out io.Writer, windows []detector.WindowReport) {
	for _, w := range windows {
		fmt.Fprintf(out, "window %d [%d,%d) mean=%.4f var=%.4f c=%.6f threshold=%.4f beats=%d\n",
			w.Index, w.Span.Start, w.Span.End, w.Mean, w.Variance, w.Sensitivity, w.Threshold, w.Beats)
	}
}

func runAnalyze(cmd *cobra.Command, dir string, force bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	a, err := newAnalyzer(cfg, logger, analysis.WithPixelsPerSec(cfg.PixelsPerSec))
	if err != nil {
		return err
	}

	n, err := a.AnalyzeDir(dir, force)
	if err != nil {
		return err
	}
	logger.Infof("wrote %d sidecars under %s", n, dir)
	return nil
}

func runExport(cmd *cobra.Command, audioPath, outPath string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	n, err := analysis.ExportText(audioPath, outPath)
	if err != nil {
		return err
	}
	logger.Infof("wrote %d samples to %s", n, outPath)
	return nil
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("music"); dir != "" {
		cfg.MusicDir = dir
	}
	logger := cfg.NewLogger()

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	logger.Infof("serving %s on %s", cfg.MusicDir, cfg.Addr)
	return server.New(a, cfg.MusicDir, logger).Run(cfg.Addr)
}
