package auth

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lacpa/lacpa-backend/internal/db"
)

const schema = "lacpa_auth"

// Init creates the lacpa_auth schema, its tables and the indexes the stores
// rely on for uniqueness and lookups.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", schema, err)
	}

	if err := d.AutoMigrate(&Account{}, &VerificationChallenge{}, &ResetToken{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}

	// Case-insensitive email uniqueness. The constraint name is what
	// translateError keys ErrDuplicateEmail on.
	err := db.ExecAll(d,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+emailIndex+` ON lacpa_auth.accounts (LOWER(email))`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_email_created ON lacpa_auth.verification_challenges (email, created_at DESC)`,
		// Close all but the newest open challenge per pair so the partial
		// unique index below can be built on an existing table.
		`UPDATE lacpa_auth.verification_challenges c SET superseded_at = now()
		   WHERE c.consumed_at IS NULL AND c.superseded_at IS NULL
		     AND EXISTS (SELECT 1 FROM lacpa_auth.verification_challenges n
		                  WHERE n.email = c.email AND n.purpose = c.purpose
		                    AND n.consumed_at IS NULL AND n.superseded_at IS NULL
		                    AND (n.created_at, n.id) > (c.created_at, c.id))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_challenges_one_open ON lacpa_auth.verification_challenges (email, purpose)
		   WHERE consumed_at IS NULL AND superseded_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_account_active ON lacpa_auth.sessions (account_id) WHERE revoked_at IS NULL`,
	)
	if err != nil {
		return err
	}
	return nil
}
