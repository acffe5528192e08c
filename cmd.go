package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pcapfile/internal/config"
	"pcapfile/internal/engine"
	"pcapfile/internal/flow"
	"pcapfile/internal/handlers"
	"pcapfile/internal/parser"
	"pcapfile/internal/savefile"
)

type options struct {
	configPath string
	flags      config.Config
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	o := &options{flags: config.Default()}

	root := &cobra.Command{
		Use:           "pcapfile",
		Short:         "Read pcap savefiles and decode their packets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			cfg.Merge(o.flags, cmd.Flags())
			if err := cfg.Validate(); err != nil {
				return err
			}
			o.cfg = cfg
			return cfg.ApplyLogging()
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	o.flags.BindFlags(root.PersistentFlags())

	root.AddCommand(newDumpCmd(o), newFlowsCmd(o), newServeCmd(o))
	return root
}

// loadFile opens path and loads it with the configured depth, decoding in
// parallel.
func loadFile(ctx context.Context, cfg config.Config, path string) (*savefile.CaptureFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open savefile")
	}
	defer f.Close()

	cf := savefile.Load(f, 0, savefile.WithLogger(logrus.WithField("file", path)))
	if !cf.Valid {
		return cf, errors.Wrapf(cf.Err(), "load %s", path)
	}
	if err := cf.Decode(ctx, cfg.Layers, cfg.Workers); err != nil {
		return cf, err
	}
	return cf, nil
}

func newDumpCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the savefile header and one line per packet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := loadFile(cmd.Context(), o.cfg, args[0])
			if err != nil {
				return err
			}
			return dump(cmd.OutOrStdout(), cf)
		},
	}
}

func dump(w io.Writer, cf *savefile.CaptureFile) error {
	if _, err := fmt.Fprintf(w, "%s, %d packets\n", cf.Header, len(cf.Packets)); err != nil {
		return err
	}
	var start time.Time
	for _, p := range cf.Packets {
		if start.IsZero() {
			start = p.Time()
		}
		info := parser.Parse(p, start)
		if _, err := fmt.Fprintf(w, "%5d %s %-8s %s -> %s len=%d %s\n",
			info.Number, info.Timestamp, info.Protocol, info.SrcAddr, info.DstAddr, info.Length, info.Info); err != nil {
			return err
		}
	}
	if cf.Truncated() {
		fmt.Fprintf(w, "truncated: %v\n", cf.TailErr())
	}
	return nil
}

func newFlowsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flows FILE",
		Short: "Print the flows found in a savefile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			// Ports and TCP flags need the transport layer.
			if cfg.Layers < 3 {
				cfg.Layers = 3
			}
			cf, err := loadFile(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			tr := flow.NewTracker()
			for _, p := range cf.Packets {
				if t := parser.ExtractFlowTuple(p.Layer()); t.Valid {
					tr.Track(t.SrcIP, t.DstIP, t.SrcPort, t.DstPort, t.Protocol, int(p.PacketLen()), p.TimestampMs(), t.Flags)
				}
			}
			for _, f := range tr.GetFlows() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [FILE]",
		Short: "Serve savefile uploads and stream decoded packets over WebSocket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			eng := engine.New(engine.Config{
				Workers:   cfg.Workers,
				PaceBatch: cfg.PaceBatch,
				PaceDelay: cfg.PaceDelay,
			}, logrus.WithField("component", "engine"))

			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open savefile")
				}
				_, err = eng.LoadCapture(cmd.Context(), filepath.Base(args[0]), f, cfg.Layers)
				f.Close()
				if err != nil {
					return err
				}
			}

			mux := http.NewServeMux()
			handlers.RegisterRoutes(mux, eng, cfg.Layers)

			logrus.Infof("pcapfile listening on http://localhost%s", cfg.Addr)
			return http.ListenAndServe(cfg.Addr, mux)
		},
	}
}
