package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goPortal/session"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	sessions    int
	memberships int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func newLoadtestCmd() *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session store latency under concurrent load",
		Long: `Seed the session store and measure two phases:

  lookup  random GETs of seeded sessions (the /dashboard hot path)
  churn   create + destroy pairs (the /callback and /logout writes)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("sessions, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.sessions, "sessions", 100000, "number of sessions to seed")
	f.IntVar(&opts.memberships, "memberships", 20, "memberships per seeded session")
	f.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 200000, "operations per phase")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; empty starts an in-process miniredis")
	f.StringVar(&opts.prefix, "prefix", "lt", "session key prefix")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, cleanup, err := connectRedis(opts.redisAddr, "", 0, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store := session.NewStore(client, opts.prefix, time.Hour)

	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	ids := make([]string, opts.sessions)
	for i := range ids {
		sid, err := store.Create(ctx, buildRecord(i, opts.memberships))
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		ids[i] = sid
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookup := runPhase(opts.ops, opts.concurrency, 7919, func(r *rand.Rand, _ int) error {
		_, err := store.Get(ctx, ids[r.Intn(len(ids))])
		return err
	})
	churn := runPhase(opts.ops, opts.concurrency, 6151, func(_ *rand.Rand, i int) error {
		sid, err := store.Create(ctx, buildRecord(i, opts.memberships))
		if err != nil {
			return err
		}
		return store.Destroy(ctx, sid)
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "lookup", lookup)
	printStats(out, "churn", churn)
	return nil
}

func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand, int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildRecord(i, memberships int) *session.Record {
	rec := &session.Record{
		Profile: session.Profile{
			ID:            strconv.Itoa(1_000_000 + i),
			Username:      "user" + strconv.Itoa(i),
			Discriminator: "0",
			Avatar:        "8342729096ea3675442027381ff50dfe",
		},
		Memberships: make([]session.Membership, memberships),
	}
	for j := range rec.Memberships {
		rec.Memberships[j] = session.Membership{
			ID:   strconv.Itoa(j),
			Name: "guild " + strconv.Itoa(j),
		}
	}
	return rec
}
