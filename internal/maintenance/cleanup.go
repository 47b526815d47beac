// Package maintenance purges auth records that no flow can use any more:
// spent or expired codes and reset tokens, ended sessions, and accounts
// created by test runs.
package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/lacpa/lacpa-backend/internal/logging"
)

// ErrUnsafePattern rejects test patterns that could match real members.
var ErrUnsafePattern = errors.New("test email pattern must contain a domain, e.g. %@example.com")

type Options struct {
	// Retention keeps ended records younger than this, for support lookups.
	Retention time.Duration
	// TestEmailPatterns are SQL LIKE patterns. Matching non-admin accounts
	// are deleted together with their sessions, codes and tokens.
	TestEmailPatterns []string
	DryRun            bool
	// AdvisoryLockKey serializes concurrent runs when non-zero.
	AdvisoryLockKey int64
	Now             func() time.Time
}

// Report holds per-table row counts, deleted or, on a dry run, matched.
// Rows matched by more than one rule are counted once per rule.
type Report struct {
	Cutoff time.Time
	DryRun bool
	Tables map[string]int64
}

func (r Report) String() string {
	var b strings.Builder
	verb := "deleted"
	if r.DryRun {
		verb = "would delete"
	}
	fmt.Fprintf(&b, "cutoff %s:", r.Cutoff.Format(time.RFC3339))
	for _, t := range tableOrder {
		fmt.Fprintf(&b, " %s=%d", t, r.Tables[t])
	}
	fmt.Fprintf(&b, " (%s)", verb)
	return b.String()
}

var tableOrder = []string{"verification_challenges", "reset_tokens", "sessions", "accounts"}

type rule struct {
	table string
	where string
	arg   any
}

type Cleaner struct {
	db     *sql.DB
	logger logging.Logger
}

func NewCleaner(db *sql.DB, logger logging.Logger) *Cleaner {
	return &Cleaner{db: db, logger: logger.With("component", "maintenance")}
}

func normalizePatterns(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		at := strings.LastIndex(p, "@")
		if at < 0 || strings.Trim(p[at+1:], "%_") == "" {
			return nil, fmt.Errorf("%q: %w", p, ErrUnsafePattern)
		}
		out = append(out, p)
	}
	return out, nil
}

func rules(cutoff time.Time, patterns []string) []rule {
	rs := []rule{
		{"verification_challenges", "expires_at < $1 OR consumed_at < $1 OR superseded_at < $1", cutoff},
		{"reset_tokens", "expires_at < $1 OR consumed_at < $1", cutoff},
		{"sessions", "expires_at < $1 OR revoked_at < $1", cutoff},
	}
	if len(patterns) == 0 {
		return rs
	}

	// Dependents first; there are no cascading foreign keys.
	testAccounts := "SELECT id FROM lacpa_auth.accounts WHERE LOWER(email) LIKE ANY($1) AND role <> 'admin'"
	arr := pq.Array(patterns)
	return append(rs,
		rule{"sessions", "account_id IN (" + testAccounts + ")", arr},
		rule{"verification_challenges", "email LIKE ANY($1)", arr},
		rule{"reset_tokens", "email LIKE ANY($1)", arr},
		rule{"accounts", "LOWER(email) LIKE ANY($1) AND role <> 'admin'", arr},
	)
}

// Run applies every rule in one transaction. A dry run counts the matching
// rows and rolls back.
func (c *Cleaner) Run(ctx context.Context, opts Options) (Report, error) {
	patterns, err := normalizePatterns(opts.TestEmailPatterns)
	if err != nil {
		return Report{}, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cutoff := now().Add(-opts.Retention)
	report := Report{Cutoff: cutoff, DryRun: opts.DryRun, Tables: map[string]int64{}}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return report, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op once committed
	}()

	if opts.AdvisoryLockKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, opts.AdvisoryLockKey); err != nil {
			return report, fmt.Errorf("advisory lock: %w", err)
		}
	}

	for _, r := range rules(cutoff, patterns) {
		n, err := apply(ctx, tx, r, opts.DryRun)
		if err != nil {
			return report, fmt.Errorf("%s: %w", r.table, err)
		}
		report.Tables[r.table] += n
		c.logger.Debug(ctx, "cleanup rule applied", "table", r.table, "where", r.where, "rows", n, "dry_run", opts.DryRun)
	}

	if opts.DryRun {
		return report, nil
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("commit: %w", err)
	}
	c.logger.Info(ctx, "cleanup complete", "report", report.String())
	return report, nil
}

func apply(ctx context.Context, tx *sql.Tx, r rule, dryRun bool) (int64, error) {
	if dryRun {
		var n int64
		q := "SELECT count(*) FROM lacpa_auth." + r.table + " WHERE " + r.where
		if err := tx.QueryRowContext(ctx, q, r.arg).Scan(&n); err != nil {
			return 0, err
		}
		return n, nil
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM lacpa_auth."+r.table+" WHERE "+r.where, r.arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
