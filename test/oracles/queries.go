package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_terminal_unfrozen",
			SQL: `SELECT id, status, frozen FROM disputes
                  WHERE status IN ('resolved','rejected') AND frozen = true`,
		},
		{
			Name: "O2_terminal_has_resolution",
			SQL: `SELECT id, status FROM disputes
                  WHERE status IN ('resolved','rejected') AND resolution IS NULL`,
		},
		{
			Name: "O3_audit_time_monotonic",
			SQL: `WITH ordered AS (
                      SELECT dispute_id, id, created_at,
                             LAG(created_at) OVER (PARTITION BY dispute_id ORDER BY id) AS prev
                      FROM dispute_events)
                  SELECT * FROM ordered WHERE prev IS NOT NULL AND created_at < prev`,
		},
		{
			Name: "O4_audit_starts_with_creation",
			SQL: `SELECT d.id FROM disputes d
                  LEFT JOIN LATERAL (
                      SELECT action FROM dispute_events e
                      WHERE e.dispute_id = d.id ORDER BY e.id ASC LIMIT 1
                  ) first ON true
                  WHERE first.action IS DISTINCT FROM 'dispute_created'`,
		},
		{
			Name: "O5_frozen_flag_matches_audit",
			SQL: `SELECT d.id, d.frozen, last.action FROM disputes d
                  LEFT JOIN LATERAL (
                      SELECT action FROM dispute_events e
                      WHERE e.dispute_id = d.id
                        AND e.action IN ('asset_frozen','asset_unfrozen')
                      ORDER BY e.id DESC LIMIT 1
                  ) last ON true
                  WHERE d.frozen <> (last.action = 'asset_frozen')
                     OR (last.action IS NULL AND d.frozen)`,
		},
		{
			Name: "O6_response_requires_offer",
			SQL: `SELECT id FROM disputes
                  WHERE settlement_offer->>'status' IN ('accepted','rejected')
                    AND NOT EXISTS (
                      SELECT 1 FROM dispute_events e
                      WHERE e.dispute_id = disputes.id AND e.action = 'settlement_proposed')`,
		},
		{
			Name: "O7_arbitration_window_positive",
			SQL: `SELECT id, arbitration_data FROM disputes
                  WHERE arbitration_data IS NOT NULL
                    AND (arbitration_data->>'end_date')::timestamptz
                        <= (arbitration_data->>'start_date')::timestamptz`,
		},
		{
			Name: "O8_method_set_with_arbitration_data",
			SQL: `SELECT id FROM disputes
                  WHERE (arbitration_data IS NOT NULL) <> (arbitration_method IS NOT NULL)`,
		},
		{
			Name: "O9_accepted_offer_means_resolved",
			SQL: `SELECT id, status FROM disputes
                  WHERE settlement_offer->>'status' = 'accepted'
                    AND status <> 'resolved'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
