// Package seeds provisions the initial staff accounts from a YAML file.
package seeds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/logging"
)

// AdminSeed is one entry of the seed file. Password may reference the
// environment, e.g. "${LACPA_ADMIN_PASSWORD}", so the file can be committed.
type AdminSeed struct {
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Provisioner creates verified accounts. *auth.Service implements it.
type Provisioner interface {
	ProvisionAccount(ctx context.Context, in auth.ProvisionInput) (*auth.Account, error)
}

type Result struct {
	Created int
	Skipped int
}

func LoadAdmins(path string) ([]AdminSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return ParseAdmins(data)
}

func ParseAdmins(data []byte) ([]AdminSeed, error) {
	var out []AdminSeed
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i := range out {
		out[i].Password = os.ExpandEnv(out[i].Password)
		if out[i].Role == "" {
			out[i].Role = string(auth.RoleAdmin)
		}
	}
	return out, nil
}

// SeedAdmins creates each account verified and active. Emails that already
// exist are skipped, so the command can be re-run safely.
func SeedAdmins(ctx context.Context, p Provisioner, logger logging.Logger, seeds []AdminSeed) (Result, error) {
	var res Result
	for i, s := range seeds {
		if strings.TrimSpace(s.Password) == "" {
			return res, fmt.Errorf("seed %d (%s): password is empty", i+1, s.Email)
		}

		acc, err := p.ProvisionAccount(ctx, auth.ProvisionInput{
			FullName: s.FullName,
			Email:    s.Email,
			Password: s.Password,
			Role:     auth.Role(s.Role),
			Verified: true,
		})
		if errors.Is(err, auth.ErrDuplicateEmail) {
			logger.Info(ctx, "account exists, skipping", "email", s.Email)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed %d (%s): %w", i+1, s.Email, err)
		}

		logger.Info(ctx, "account seeded", "email", acc.Email, "lacpa_id", acc.LACPAID, "role", acc.Role)
		res.Created++
	}
	return res, nil
}
