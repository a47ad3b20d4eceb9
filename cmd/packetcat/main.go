// Command packetcat copies standard input to standard output through a
// packetio channel, optionally line by line, and logs throughput on exit.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/containerd/log"
	"github.com/docker/go-metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/packetio"
	"github.com/jacoelho/packetio/internal/config"
)

type options struct {
	configFile  string
	autoFlush   bool
	lines       bool
	maxLine     int
	logLevel    string
	metricsAddr string
}

func newCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "packetcat [OPTIONS]",
		Short:         "Copy stdin to stdout through a bounded packet channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			if opts.metricsAddr != "" {
				srv := &http.Server{Addr: opts.metricsAddr, Handler: metrics.Handler()}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.G(cmd.Context()).WithError(err).Error("metrics server failed")
					}
				}()
				defer srv.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", os.Getenv(config.ConfigEnvVar), "Configuration file")
	flags.BoolVar(&opts.autoFlush, "auto-flush", false, "Make every write visible to the reader immediately")
	flags.BoolVar(&opts.lines, "lines", false, "Copy line by line, normalizing line endings")
	flags.IntVar(&opts.maxLine, "max-line", 64*1024, "Longest accepted line in bytes with --lines")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides the configuration file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// loadConfig reads the configuration file and applies flags that were set
// explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.LoadFrom(opts.configFile); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("auto-flush") {
		cfg.Channel.AutoFlush = opts.autoFlush
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	if err := log.SetLevel(cfg.Level); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	if err := log.SetFormat(log.OutputFormat(cfg.Format)); err != nil {
		return fmt.Errorf("failed to set log format: %w", err)
	}
	return nil
}

// run pumps in into a channel on one goroutine and drains it to out on
// another.
func run(ctx context.Context, cfg *config.Config, opts options, in io.Reader, out io.Writer) error {
	pool := packetio.NewPoolFromConfig(cfg.Pool)
	ch := packetio.NewChannelFromConfig(cfg.Channel, pool)

	// The first failure cancels gctx, which closes the channel and unblocks
	// the other side.
	g, gctx := errgroup.WithContext(ctx)
	if _, err := ch.AttachContext(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		if _, err := ch.ReadFrom(in); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		return ch.Close()
	})
	g.Go(func() error {
		var err error
		if opts.lines {
			err = copyLines(gctx, ch, out, opts.maxLine)
		} else {
			_, err = ch.WriteTo(out)
		}
		if err != nil {
			return fmt.Errorf("copy output: %w", err)
		}
		return nil
	})
	err := g.Wait()

	stats := ch.Stats()
	log.G(ctx).WithFields(log.Fields{
		"written":     stats.Written,
		"read":        stats.Read,
		"outstanding": pool.Outstanding(),
	}).Info("copy finished")
	return err
}

func copyLines(ctx context.Context, ch *packetio.Channel, out io.Writer, maxLine int) (err error) {
	w := bufio.NewWriter(out)
	defer func() {
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
	}()

	for {
		line, ok, err := ch.ReadUTF8Line(ctx, maxLine)
		if errors.Is(err, packetio.ErrEndOfInput) {
			return copyUnterminated(ctx, ch, w, maxLine)
		}
		if err != nil || !ok {
			return err
		}
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
}

// copyUnterminated writes the final line that ended without a terminator.
func copyUnterminated(ctx context.Context, ch *packetio.Channel, w *bufio.Writer, maxLine int) error {
	rest, err := ch.ReadRemaining(ctx, int64(maxLine))
	if err != nil {
		return err
	}
	defer rest.Release()

	if _, err := rest.WriteTo(w); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func main() {
	cmd := newCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.L.WithError(err).Error("packetcat failed")
		os.Exit(1)
	}
}
