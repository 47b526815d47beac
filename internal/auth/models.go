package auth

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool { return r == RoleMember || r == RoleAdmin }

// Purpose says what a verification code (and the reset token it yields) is for.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "reset"
)

type Account struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	LACPAID      string     `gorm:"column:lacpa_id;not null;uniqueIndex:idx_accounts_lacpa_id" json:"lacpa_id"`
	FullName     string     `gorm:"not null" json:"full_name"`
	Email        string     `gorm:"not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	IsVerified   bool       `gorm:"not null;default:false" json:"is_verified"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	Role         Role       `gorm:"type:text;not null;default:'member'" json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// VerificationChallenge is one issued code. Only the SHA-256 of the code
// is stored.
type VerificationChallenge struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	Email        string     `gorm:"not null;index:idx_challenges_email_purpose"`
	Purpose      Purpose    `gorm:"type:text;not null;index:idx_challenges_email_purpose"`
	CodeHash     string     `gorm:"not null"`
	Attempts     int        `gorm:"not null;default:0"`
	ExpiresAt    time.Time  `gorm:"not null"`
	ConsumedAt   *time.Time
	SupersededAt *time.Time
	CreatedAt    time.Time
}

func (c *VerificationChallenge) Active(now time.Time) bool {
	return c.ConsumedAt == nil && c.SupersededAt == nil && now.Before(c.ExpiresAt)
}

type ResetToken struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	TokenHash  string    `gorm:"not null;uniqueIndex:idx_reset_tokens_hash"`
	Email      string    `gorm:"not null;index"`
	Purpose    Purpose   `gorm:"type:text;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Session is the server-side record behind a bearer token. ID is the
// token's jti claim.
type Session struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	AccountID string    `gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	UserAgent string
	IP        string
	CreatedAt time.Time
}

func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

func (Account) TableName() string               { return "lacpa_auth.accounts" }
func (VerificationChallenge) TableName() string { return "lacpa_auth.verification_challenges" }
func (ResetToken) TableName() string            { return "lacpa_auth.reset_tokens" }
func (Session) TableName() string               { return "lacpa_auth.sessions" }

// AccountView is the public shape of an account returned by /profile,
// /login and the admin endpoints.
type AccountView struct {
	ID          string     `json:"id"`
	LACPAID     string     `json:"lacpa_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a *Account) View() AccountView {
	return AccountView{
		ID:          a.ID,
		LACPAID:     a.LACPAID,
		FullName:    a.FullName,
		Email:       a.Email,
		Role:        a.Role,
		IsVerified:  a.IsVerified,
		IsActive:    a.IsActive,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}
