package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentfloor"
	"github.com/hupe1980/agentfloor/config"
	"github.com/hupe1980/agentfloor/logging"
)

type simulateFlags struct {
	scenario    string
	session     string
	seed        int64
	generator   string
	metricsAddr string
	format      string
	hold        bool
}

func newSimulateCmd() *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario and print every turn result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "scenario YAML file")
	cmd.Flags().StringVar(&f.session, "session", "simulation", "session id")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "override the scenario seed")
	cmd.Flags().StringVar(&f.generator, "generator", "", "override the generator provider (none, mock, anthropic, openai)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format (json, summary)")
	cmd.Flags().BoolVar(&f.hold, "hold", false, "keep serving metrics until interrupted")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func runSimulate(cmd *cobra.Command, f simulateFlags) error {
	if f.format != "json" && f.format != "summary" {
		return fmt.Errorf("unknown format %q", f.format)
	}

	sc, err := config.LoadScenario(f.scenario)
	if err != nil {
		return err
	}
	cfg := sc.Config
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	if f.generator != "" {
		cfg.Generator.Provider = f.generator
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}

	logCfg := logging.DefaultLoggerConfig()
	logCfg.Level = logging.ParseLogLevel(cfg.Logging.Level)
	logCfg.Format = cfg.Logging.Format
	logCfg.Output = cmd.ErrOrStderr()
	logCfg.Component = "cli"
	logger := logging.NewLogger(logCfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var reg prometheus.Registerer
	if cfg.Metrics.Addr != "" {
		r := prometheus.NewRegistry()
		r.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		reg = r
		if err := serveMetrics(gctx, g, cfg.Metrics.Addr, r, logger); err != nil {
			return err
		}
	}

	floor, err := agentfloor.New(func(o *agentfloor.Options) {
		o.Config = cfg
		o.Logger = logger
		o.Registerer = reg
	})
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	rep, simErr := floor.Simulate(ctx, f.session, sc.Messages)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	closeErr := floor.Close(closeCtx)

	if simErr == nil {
		simErr = writeReport(cmd.OutOrStdout(), f.format, rep)
	}

	if f.hold && reg != nil && simErr == nil {
		logger.Info("Serving metrics until interrupted", "addr", cfg.Metrics.Addr)
		<-gctx.Done()
	}
	cancel()
	return errors.Join(simErr, closeErr, g.Wait())
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("Metrics endpoint listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

func writeReport(w io.Writer, format string, rep agentfloor.Report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	for _, t := range rep.Turns {
		var speakers []string
		for _, d := range t.Admitted() {
			speakers = append(speakers, fmt.Sprintf("%s(%s)", d.AgentID, d.Type))
		}
		if len(speakers) == 0 {
			speakers = []string{"-"}
		}
		fmt.Fprintf(w, "turn %d [%s] %s: %s\n", t.Turn, t.Phase, t.ProcessedMessage.AgentID, strings.Join(speakers, ", "))
		for _, tr := range t.SharingTriggers {
			fmt.Fprintf(w, "  share %s %s -> %s (%s)\n", tr.Type, tr.SourceAgentID, tr.RecipientAgentID, tr.Disposition)
		}
		for _, warn := range t.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
	if rep.Session != nil {
		m := rep.Session.Metrics
		fmt.Fprintf(w, "session %s: %d turns, %d speakers admitted, %d coordination delays, %d shares executed, %d suggested\n",
			rep.Session.ID, m.TurnCount, m.SpeakersAdmitted, m.CoordinationDelays, m.SharesExecuted, m.SharesSuggested)
	}
	return nil
}
