package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"disputeflow/detector"
	"disputeflow/dispute"
	"disputeflow/test/actors"
	"disputeflow/test/infra"
	"disputeflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

func TestDisputeLifecycleConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("DISPUTE_STRESS_PG_DSN") != "":
		dsn = os.Getenv("DISPUTE_STRESS_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	// migrations
	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	eng := dispute.NewEngine(dispute.NewRepository(pool), nil, dispute.Config{
		ArbitrationPeriod:  7 * 24 * time.Hour,
		DaoVotingThreshold: 0.66,
	})

	// seed minimal data
	mustSeed(t, ctx, eng)

	// run actors
	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	filer := fmt.Sprintf("0x%040x", rand.Int63())
	for i := 0; i < *flConcurrency; i++ {
		actor := fmt.Sprintf("0x%040x", rand.Int63())
		g.Go(func() error { return actors.Freezer(ctx2, eng, pool, actor, stop) })
		g.Go(func() error { return actors.Settler(ctx2, eng, pool, actor, stop) })
		g.Go(func() error { return actors.Responder(ctx2, eng, pool, actor, stop) })
	}

	g.Go(func() error { return actors.Filer(ctx2, eng, filer, stop) })
	g.Go(func() error { return actors.Arbitrator(ctx2, eng, pool, fmt.Sprintf("0x%040x", rand.Int63()), stop) })
	g.Go(func() error { return actors.Finalizer(ctx2, eng, pool, fmt.Sprintf("0x%040x", rand.Int63()), stop) })
	g.Go(func() error { return actors.Reader(ctx2, eng, pool, filer, stop) })

	// schedule oracle checks until duration reached
	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func mustSeed(t *testing.T, ctx context.Context, eng *dispute.Engine) {
	t.Helper()
	creator := fmt.Sprintf("0x%040x", rand.Int63())
	for i := 0; i < 5; i++ {
		tokenID := fmt.Sprintf("token-%d", i)
		report := detector.Report{
			AssetPath:      fmt.Sprintf("/assets/seed-%d.png", i),
			AssetType:      "image",
			Threshold:      0.75,
			CheckCompleted: true,
		}
		evidence, err := report.Encode()
		if err != nil {
			t.Fatalf("seed report %d: %v", i, err)
		}
		if _, err := eng.CreateDispute(ctx, creator, tokenID, evidence, nil); err != nil {
			t.Fatalf("seed dispute %d: %v", i, err)
		}
	}
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"disputes", `SELECT id, status, arbitration_method, frozen, updated_at FROM disputes ORDER BY seq DESC LIMIT 50`},
		{"dispute_events", `SELECT id, dispute_id, action, actor, created_at FROM dispute_events ORDER BY id DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			// compact print
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
