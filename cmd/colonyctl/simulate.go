package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/danmuck/colonyctl/internal/minigame"
	"github.com/danmuck/colonyctl/internal/observability"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/sequence"
	"github.com/danmuck/colonyctl/internal/session"
	"github.com/danmuck/colonyctl/internal/simulator"
)

type simulateOptions struct {
	minigameID   uint32
	difficultyID uint32
	outcome      string
	timeout      time.Duration
}

func newSimulateCmd(load configLoader) *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play one scripted offline session against the local simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := applyLogLevel(cfg.LogLevel); err != nil {
				return err
			}
			if opts.outcome != "won" && opts.outcome != "lost" {
				return fmt.Errorf("outcome must be won or lost, got %q", opts.outcome)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return simulate(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().Uint32Var(&opts.minigameID, "minigame", uint32(minigame.Asteroids), "minigame id")
	cmd.Flags().Uint32Var(&opts.difficultyID, "difficulty", 1, "difficulty id")
	cmd.Flags().StringVar(&opts.outcome, "outcome", "won", "reported outcome: won|lost")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

func simulate(ctx context.Context, out io.Writer, cfg appConfig, opts simulateOptions) error {
	if cfg.Session.Identity.Role != schema.RoleOwner {
		return fmt.Errorf("simulate: the local participant must be the owner, got %s", cfg.Session.Identity.Role)
	}
	cfg.Session.Offline = true

	minigames, err := loadMinigames(cfg)
	if err != nil {
		return err
	}
	name := "unknown"
	for _, info := range minigames.Variants() {
		if uint32(info.ID) != opts.minigameID {
			continue
		}
		if d, ok := lo.Find(info.Difficulties, func(d minigame.DifficultyInfo) bool { return d.ID == opts.difficultyID }); ok {
			name = d.Name
		}
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	s, err := session.New(cfg.Session, session.WithMinigames(minigames), session.WithMetrics(metrics))
	if err != nil {
		return err
	}
	s.Machine().OnPhaseChange(func(from, to sequence.Phase) {
		fmt.Fprintf(out, "phase %s -> %s\n", from, to)
	})

	runCtx, stopRun := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	err = script(ctx, s, cfg, opts, name)
	stopRun()
	if runErr := <-done; runErr != nil && err == nil {
		err = runErr
	}
	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "final phase %s, abort reason %q\n", s.Machine().CurrentPhase(), s.Machine().AbortReason())
	return nil
}

// script drives the owner's half of one session on the loop.
func script(ctx context.Context, s *session.Session, cfg appConfig, opts simulateOptions, name string) error {
	loop := s.Loop()
	seq := s.Machine()
	call := func(fn func() error) error {
		var err error
		if cerr := loop.Call(ctx, func() { err = fn() }); cerr != nil {
			return cerr
		}
		return err
	}
	wait := func(what string, cond func() bool) error {
		ticker := time.NewTicker(cfg.Session.Tick)
		defer ticker.Stop()
		for {
			var ok bool
			if err := loop.Call(ctx, func() { ok = cond() }); err != nil {
				return fmt.Errorf("waiting for %s: %w", what, err)
			}
			if ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
			case <-ticker.C:
			}
		}
	}

	d := protocol.Difficulty{MinigameID: opts.minigameID, DifficultyID: opts.difficultyID, DifficultyName: name}
	if err := call(func() error { return seq.ConfirmDifficulty(d) }); err != nil {
		return err
	}
	if err := call(func() error {
		at := time.Now()
		for _, c := range cfg.Session.HandPlacement.Chords {
			for _, k := range []rune{c.A, c.B} {
				at = at.Add(10 * time.Millisecond)
				if _, err := seq.Input(k, at); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := wait("declare intent", func() bool { return s.Simulator().Phase() == simulator.DeclareIntent }); err != nil {
		return err
	}
	if err := call(seq.Ready); err != nil {
		return err
	}
	if err := wait("minigame start", func() bool {
		p := seq.CurrentPhase()
		return p == sequence.InMinigame || p == sequence.ResultAbort
	}); err != nil {
		return err
	}

	aborted := false
	if err := call(func() error {
		if seq.CurrentPhase() == sequence.ResultAbort {
			aborted = true
			return nil
		}
		return s.ReportOutcome(opts.outcome == "won")
	}); err != nil {
		return err
	}
	if err := wait("return to colony", func() bool { return s.Simulator().Phase() == simulator.RoamingColony }); err != nil {
		return err
	}
	if aborted {
		log.Warn().Str("reason", seq.AbortReason()).Msg("simulate: session aborted")
		return nil
	}
	return call(seq.GoBackToColony)
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
