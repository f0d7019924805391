package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/resol-de/vbus-sync/internal/config"
	"github.com/resol-de/vbus-sync/pkg/vbus"
)

var (
	rootCmd = &cobra.Command{
		Use:   "vbus-convert [recording...]",
		Short: "Convert VBus recordings to delimited tables",
		Long: "vbus-convert decodes raw VBus recordings (.vbus files) and writes one\n" +
			"delimited table per device pair. With --analyze it decodes single hex\n" +
			"frames instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if analyze {
				if len(args) == 0 {
					return runInteractive(ctx)
				}
				for _, arg := range args {
					if err := runAnalyze(arg); err != nil {
						return err
					}
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no recordings given")
			}
			opts, loc, err := sessionDefaults()
			if err != nil {
				return err
			}
			// One bad recording must not block the others.
			failed := 0
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := convertFile(ctx, path, opts, loc); err != nil {
					logrus.WithError(err).WithField("recording", path).Error("conversion failed")
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d recordings failed", failed, len(args))
			}
			return nil
		},
	}

	analyze    bool
	configPath string
	intervalIn string
	delimIn    string
	tzIn       string
	toStdout   bool
	force      bool
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&analyze, "analyze", false, "decode hex frames instead of converting files")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file with converter defaults")
	rootCmd.PersistentFlags().StringVar(&intervalIn, "interval", "", "sampling interval, e.g. 1s or 1m")
	rootCmd.PersistentFlags().StringVar(&delimIn, "delimiter", "", "cell delimiter (default tab)")
	rootCmd.PersistentFlags().StringVar(&tzIn, "timezone", "", "timezone for datecode timestamps (default Local)")
	rootCmd.PersistentFlags().BoolVar(&toStdout, "stdout", false, "write tables to stdout instead of files")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "reconvert even when the output is newer")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-frame details")
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

// sessionDefaults merges the config file and the command line flags.
func sessionDefaults() (vbus.ConvertOptions, *time.Location, error) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return vbus.ConvertOptions{}, nil, err
	}
	var opts vbus.ConvertOptions
	if opts.Interval, err = cfg.SamplingInterval(vbus.DefaultInterval); err != nil {
		return opts, nil, err
	}
	if intervalIn != "" {
		if opts.Interval, err = time.ParseDuration(intervalIn); err != nil {
			return opts, nil, fmt.Errorf("parse --interval: %w", err)
		}
	}
	if opts.Delimiter, err = cfg.DelimiterRune(0); err != nil {
		return opts, nil, err
	}
	if delimIn != "" {
		runes := []rune(delimIn)
		if len(runes) != 1 {
			return opts, nil, fmt.Errorf("--delimiter must be a single character, got %q", delimIn)
		}
		opts.Delimiter = runes[0]
	}
	loc, err := cfg.Location(time.Local)
	if err != nil {
		return opts, nil, err
	}
	if tzIn != "" {
		if loc, err = time.LoadLocation(tzIn); err != nil {
			return opts, nil, fmt.Errorf("parse --timezone: %w", err)
		}
	}
	return opts, loc, nil
}

func convertFile(ctx context.Context, path string, opts vbus.ConvertOptions, loc *time.Location) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if !toStdout && !force && upToDate(stem, info.ModTime()) {
		logrus.WithField("recording", path).Info("skipping, output is current")
		return nil
	}
	opts.StartTime = startTime(stem, info, loc)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var created []string
	sink := func(pair vbus.Pair, _ *vbus.Schema) (io.WriteCloser, error) {
		if toStdout {
			return nopCloser{os.Stdout}, nil
		}
		name := fmt.Sprintf("%s_%s.csv", stem, pair)
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		created = append(created, name)
		logrus.WithField("output", name).Debug("writing table")
		return f, nil
	}

	summary, err := vbus.Convert(ctx, data, sink, opts)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"recording":    path,
		"frames":       summary.FramesSeen,
		"rejected":     summary.FramesRejected,
		"unrecognized": summary.FramesUnrecognized,
		"records":      summary.Records,
		"truncated":    summary.Truncated,
		"outputs":      len(created),
	}).Info("converted")
	return nil
}

// startTime anchors the first sampling cycle. Recordings named after a
// YYYYMMDD datecode start at that day's midnight; anything else falls
// back to the file's modification time.
func startTime(stem string, info os.FileInfo, loc *time.Location) time.Time {
	base := filepath.Base(stem)
	if t, err := time.ParseInLocation("20060102", base, loc); err == nil {
		return t
	}
	logrus.WithField("recording", base).Debug("no datecode in filename, using modification time")
	return info.ModTime().In(loc)
}

// upToDate reports whether every existing output for the recording is
// newer than the recording itself.
func upToDate(stem string, recorded time.Time) bool {
	outputs, err := filepath.Glob(stem + "_*.csv")
	if err != nil || len(outputs) == 0 {
		return false
	}
	for _, out := range outputs {
		info, err := os.Stat(out)
		if err != nil || info.ModTime().Before(recorded) {
			return false
		}
	}
	return true
}

func runInteractive(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	logrus.Info("vbus analyze mode. Paste a hex frame and press Enter (Ctrl+D to exit).")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runAnalyze(line); err != nil {
			logrus.WithError(err).Error("failed to decode frame")
		}
	}
	return scanner.Err()
}

func runAnalyze(hex string) error {
	result, err := vbus.DecodeHex(hex, nil)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
