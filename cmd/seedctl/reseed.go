package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/entropyctl/internal/seeder"
	"github.com/spf13/cobra"
)

var (
	flagReseedSource   string
	flagReseedFor      time.Duration
	flagReseedInterval time.Duration
	flagReseedTargets  int
	flagReseedLength   int
)

var reseedCmd = &cobra.Command{
	Use:   "reseed",
	Short: "Run the reseeding scheduler against demo targets and print each reseed",
	Args:  cobra.NoArgs,
	RunE:  runReseed,
}

func init() {
	flags := reseedCmd.Flags()
	flags.StringVarP(&flagReseedSource, "source", "s", "", "source name (default source when empty)")
	flags.DurationVar(&flagReseedFor, "for", 10*time.Second, "how long to run")
	flags.DurationVar(&flagReseedInterval, "interval", 0, "reseed interval (overrides config)")
	flags.IntVar(&flagReseedTargets, "targets", 2, "number of demo targets")
	flags.IntVar(&flagReseedLength, "length", 32, "seed length per target")
}

// demoTarget keeps only a digest of its current seed.
type demoTarget struct {
	name   string
	length int

	mu     sync.Mutex
	digest string
}

func (t *demoTarget) SeedLength() int { return t.length }

func (t *demoTarget) SetSeed(b []byte) error {
	if len(b) != t.length {
		return fmt.Errorf("%s: want %d bytes, got %d", t.name, t.length, len(b))
	}
	sum := sha256.Sum256(b)
	t.mu.Lock()
	t.digest = hex.EncodeToString(sum[:8])
	t.mu.Unlock()
	return nil
}

func (t *demoTarget) Digest() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.digest
}

func runReseed(cmd *cobra.Command, args []string) error {
	if flagReseedTargets <= 0 || flagReseedLength < 0 {
		return errors.New("targets must be positive and length must not be negative")
	}

	cfg, built, err := loadSources()
	if err != nil {
		return err
	}
	name, src, err := pick(built, flagReseedSource)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sched := cfg.SchedulerConfig()
	if flagReseedInterval > 0 {
		sched.Interval = flagReseedInterval
	}
	sched.OnEvent = func(ev seeder.Event) { printEvent(out, ev) }

	s := seeder.New(src, sched)
	for i := 0; i < flagReseedTargets; i++ {
		if err := s.Add(&demoTarget{name: fmt.Sprintf("target-%d", i), length: flagReseedLength}); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "reseeding %d targets from %s every %s for %s\n", s.Len(), name, sched.Interval, flagReseedFor)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagReseedFor)
	defer cancel()

	err = s.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printEvent(w io.Writer, ev seeder.Event) {
	ts := time.Now().Format(time.TimeOnly)
	switch {
	case ev.Target == nil:
		fmt.Fprintf(w, "%s  %s  skipped: %v\n", ts, ev.Source, ev.Err)
	case ev.Err != nil:
		fmt.Fprintf(w, "%s  %s  %s failed: %v\n", ts, ev.Source, ev.Target.(*demoTarget).name, ev.Err)
	default:
		t := ev.Target.(*demoTarget)
		fmt.Fprintf(w, "%s  %s  %s reseeded %d bytes sha256=%s\n", ts, ev.Source, t.name, ev.Length, t.Digest())
	}
}
