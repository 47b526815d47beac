package applications

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lacpa/lacpa-backend/internal/db"
)

const schema = "lacpa_membership"

// Init creates the lacpa_membership schema and the application tables. An
// email may hold one undecided application per kind.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", schema, err)
	}
	if err := d.AutoMigrate(&IndividualApplication{}, &FirmApplication{}); err != nil {
		return fmt.Errorf("auto-migrate application tables: %w", err)
	}
	return db.ExecAll(d,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+openIndividualIndex+` ON lacpa_membership.individual_applications (LOWER(email))
		   WHERE status IN ('pending', 'under_review')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+openFirmIndex+` ON lacpa_membership.firm_applications (LOWER(email))
		   WHERE status IN ('pending', 'under_review')`,
	)
}
