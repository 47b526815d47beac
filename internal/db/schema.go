package db

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func EnsureSchema(d *gorm.DB, schema string) error {
	if !identRe.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}

// ExecAll runs idempotent DDL (CREATE INDEX IF NOT EXISTS ...) in order and
// stops at the first failure.
func ExecAll(d *gorm.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if err := d.Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
