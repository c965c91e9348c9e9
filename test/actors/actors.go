package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"disputeflow/detector"
	"disputeflow/dispute"
)

// Filer keeps raising fresh disputes so the other actors always have work.
func Filer(ctx context.Context, eng *dispute.Engine, creator string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tokenID := fmt.Sprintf("token-%d", rand.Intn(1000))
		report := detector.Report{
			AssetPath: fmt.Sprintf("/assets/%s.png", tokenID),
			AssetType: "image",
			Threshold: 0.75,
			PotentialInfringement: []detector.Match{{
				Type:             "image",
				URL:              fmt.Sprintf("https://mirror.example/%d.png", rand.Int63()),
				Source:           "web",
				Similarity:       0.75 + rand.Float64()*0.25,
				DetectedAt:       time.Now().UTC(),
				ExceedsThreshold: true,
			}},
			CheckCompleted: true,
		}
		evidence, err := report.Encode()
		if err != nil {
			return fmt.Errorf("filer encode report: %w", err)
		}
		respondent := fmt.Sprintf("0x%040d", rand.Intn(64))
		if _, err := eng.CreateDispute(ctx, creator, tokenID, evidence, &respondent); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("filer create: %w", err)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Freezer flips asset holds on and off for random disputes.
func Freezer(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, actor string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			if rand.Intn(2) == 0 {
				_, err = eng.FreezeAsset(ctx, id, actor)
			} else {
				_, err = eng.UnfreezeAsset(ctx, id, actor)
			}
			if err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("freezer: %w", err)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Arbitrator pushes random disputes onto the arbitration track.
func Arbitrator(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, actor string, stop <-chan struct{}) error {
	methods := []dispute.ArbitrationMethod{
		dispute.MethodDaoVoting,
		dispute.MethodSingleArbiter,
		dispute.MethodExpertPanel,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			method := methods[rand.Intn(len(methods))]
			_, err = eng.InitiateArbitration(ctx, id, method, actor, map[string]any{"round": rand.Intn(5)})
			if err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("arbitrator: %w", err)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// Settler proposes offers and races Responder over the same disputes.
func Settler(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, actor string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			terms := map[string]any{"amount": rand.Intn(10000), "currency": "USD"}
			_, err = eng.ProposeSettlement(ctx, id, actor, terms)
			if err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("settler: %w", err)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Responder accepts or rejects whatever offer is on the table.
func Responder(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, actor string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			_, err = eng.RespondToSettlement(ctx, id, actor, rand.Intn(2) == 0)
			if err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("responder: %w", err)
			}
		}
		time.Sleep(time.Duration(25+rand.Intn(40)) * time.Millisecond)
	}
}

// Finalizer occasionally resolves or rejects a dispute outright.
func Finalizer(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, actor string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			if rand.Intn(2) == 0 {
				_, err = eng.ResolveDispute(ctx, id, actor, "arbitration_decision", "Arbiter ruled for the claimant")
			} else {
				_, err = eng.RejectDispute(ctx, id, actor, "Insufficient evidence")
			}
			if err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("finalizer: %w", err)
			}
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// Reader hammers the read paths while the writers churn.
func Reader(ctx context.Context, eng *dispute.Engine, pool *pgxpool.Pool, addr string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := eng.ActiveDisputes(ctx, addr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reader list: %w", err)
		}
		id, err := randomDispute(ctx, pool)
		if err != nil {
			return err
		}
		if id != "" {
			if _, err := eng.History(ctx, id); err != nil && !expectedContention(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("reader history: %w", err)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
	}
}

func randomDispute(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM disputes ORDER BY random() LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("pick dispute: %w", err)
	}
	return id, nil
}

// expectedContention reports whether err is a normal race outcome rather than
// a bug: the dispute reached a terminal status first, the offer was consumed,
// or the row vanished from the random sample.
func expectedContention(err error) bool {
	return errors.Is(err, dispute.ErrTerminal) ||
		errors.Is(err, dispute.ErrNoOffer) ||
		errors.Is(err, dispute.ErrNotFound)
}
