package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lacpa/lacpa-backend/internal/config"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/mail"
)

const lacpaIDAttempts = 3

type SignupInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

// LoginInput.LACPAID also accepts the account email.
type LoginInput struct {
	LACPAID  string `json:"lacpa_id" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

type VerifyInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type EmailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

type ProvisionInput struct {
	FullName string `validate:"required,min=2,max=100"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,password"`
	Role     Role   `validate:"required,lacpa_role"`
	Verified bool
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}

type VerifyResult struct {
	ResetToken string
	ExpiresAt  time.Time
	Purpose    Purpose
}

type Options struct {
	JWTSecret       string
	JWTIssuer       string
	SessionTTL      time.Duration
	CodeTTL         time.Duration
	ResetTokenTTL   time.Duration
	MaxCodeAttempts int
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
	RetryBackoff    time.Duration
	BcryptCost      int
	// Now replaces time.Now for every expiry decision. Nil means time.Now.
	Now func() time.Time
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		JWTSecret:       cfg.JWTSecret,
		JWTIssuer:       cfg.JWTIssuer,
		SessionTTL:      cfg.SessionTTL,
		CodeTTL:         cfg.CodeTTL,
		ResetTokenTTL:   cfg.ResetTokenTTL,
		MaxCodeAttempts: cfg.MaxCodeAttempts,
		StoreTimeout:    cfg.StoreTimeout,
		DeliveryTimeout: cfg.DeliveryTimeout,
		RetryBackoff:    100 * time.Millisecond,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// Service runs the account lifecycle: signup, verification, login,
// password reset and logout.
type Service struct {
	stores Stores
	codes  *CodeIssuer
	tokens *TokenIssuer
	mailer mail.Mailer
	logger logging.Logger
	opts   Options

	dummyHash []byte
	random    io.Reader
	now       func() time.Time
}

func NewService(stores Stores, mailer mail.Mailer, logger logging.Logger, opts Options) (*Service, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("lacpa-login-timing"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &Service{
		stores:    stores,
		tokens:    NewTokenIssuer(opts.JWTSecret, opts.JWTIssuer, opts.SessionTTL, stores.Sessions),
		mailer:    mailer,
		logger:    logger.With("component", "auth"),
		opts:      opts,
		dummyHash: dummy,
		random:    rand.Reader,
		now:       opts.Now,
	}
	s.tokens.now = opts.Now
	s.codes = NewCodeIssuer(retryingChallenges{inner: stores.Challenges, s: s}, opts.CodeTTL, opts.MaxCodeAttempts)
	s.codes.now = opts.Now
	return s, nil
}

// Tokens exposes the session token issuer for the request gateway.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Accounts exposes the credential store for the admin API.
func (s *Service) Accounts() AccountStore { return s.stores.Accounts }

func (s *Service) hashPassword(p string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Signup creates an unverified member account and sends it a signup code.
// A failed delivery is logged only; the caller can ask for a resend.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Account, error) {
	in.FullName = normalizeName(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	acc, err := s.newAccount(ctx, in.FullName, in.Email, in.Password, RoleMember, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created", "account_id", acc.ID, "lacpa_id", acc.LACPAID)

	code, exp, err := s.codes.Issue(ctx, acc.Email, PurposeSignup)
	if err != nil {
		s.logger.Error(ctx, "issue signup code failed", "account_id", acc.ID, "error", err)
		return acc, nil
	}
	s.deliver(ctx, acc, code, PurposeSignup, exp)
	return acc, nil
}

// ProvisionAccount creates an account directly, bypassing the code flow.
// Used by the admin seeder.
func (s *Service) ProvisionAccount(ctx context.Context, in ProvisionInput) (*Account, error) {
	in.FullName = normalizeName(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = RoleMember
	}
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	return s.newAccount(ctx, in.FullName, in.Email, in.Password, in.Role, in.Verified)
}

func (s *Service) newAccount(ctx context.Context, name, email, password string, role Role, verified bool) (*Account, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	acc := &Account{
		ID:           uuid.NewString(),
		FullName:     name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   verified,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for i := 0; i < lacpaIDAttempts; i++ {
		acc.LACPAID, err = generateLACPAID(s.random, now)
		if err != nil {
			return nil, err
		}
		err = retryErr(ctx, s, "accounts.create", func(ctx context.Context) error {
			return s.stores.Accounts.Create(ctx, acc)
		})
		if errors.Is(err, ErrDuplicateLACPAID) {
			s.logger.Warn(ctx, "lacpa id collision, regenerating", "lacpa_id", acc.LACPAID)
			continue
		}
		if err != nil {
			return nil, err
		}
		return acc, nil
	}
	return nil, fmt.Errorf("allocate lacpa id: %w", ErrDuplicateLACPAID)
}

// Login checks credentials and opens a session. Unknown ids and wrong
// passwords both yield ErrInvalidCredentials. Verification is checked
// before the password, so an unverified account always gets ErrUnverified.
func (s *Service) Login(ctx context.Context, in LoginInput, meta SessionMeta) (*LoginResult, error) {
	in.LACPAID = strings.TrimSpace(in.LACPAID)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	loginID := in.LACPAID
	if strings.Contains(loginID, "@") {
		loginID = NormalizeEmail(loginID)
	}

	acc, err := retry(ctx, s, "accounts.find_login", func(ctx context.Context) (*Account, error) {
		return s.stores.Accounts.FindByLoginID(ctx, loginID)
	})
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !acc.IsVerified {
		return nil, ErrUnverified
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(in.Password)) != nil {
		s.logger.Info(ctx, "login rejected", "account_id", acc.ID, "reason", "bad_password")
		return nil, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, ErrAccountDisabled
	}

	type issued struct {
		token string
		exp   time.Time
	}
	tok, err := retry(ctx, s, "sessions.create", func(ctx context.Context) (issued, error) {
		t, exp, err := s.tokens.Issue(ctx, acc, meta)
		return issued{t, exp}, err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = retryErr(ctx, s, "accounts.touch_login", func(ctx context.Context) error {
		return s.stores.Accounts.TouchLastLogin(ctx, acc.ID, now)
	})
	if err != nil {
		s.logger.Warn(ctx, "record last login failed", "account_id", acc.ID, "error", err)
	} else {
		acc.LastLoginAt = &now
	}

	// Tokens handed out by signup verification are not needed once the
	// member has logged in.
	n, err := retry(ctx, s, "reset_tokens.consume_outstanding", func(ctx context.Context) (int64, error) {
		return s.stores.Resets.ConsumeOutstanding(ctx, acc.Email, PurposeSignup, now)
	})
	if err != nil {
		s.logger.Warn(ctx, "consume signup reset tokens failed", "account_id", acc.ID, "error", err)
	} else if n > 0 {
		s.logger.Debug(ctx, "consumed signup reset tokens", "account_id", acc.ID, "count", n)
	}

	s.logger.Info(ctx, "login succeeded", "account_id", acc.ID)
	return &LoginResult{Token: tok.token, ExpiresAt: tok.exp, Account: acc}, nil
}

// VerifyCode consumes a code and returns a single-use reset token. Any
// successful code proves control of the mailbox, so an unverified account
// becomes verified.
func (s *Service) VerifyCode(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	in.Email = NormalizeEmail(in.Email)
	in.OTP = strings.TrimSpace(in.OTP)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	ch, err := s.codes.Verify(ctx, in.Email, in.OTP)
	if err != nil {
		return nil, err
	}

	acc, err := retry(ctx, s, "accounts.find_email", func(ctx context.Context) (*Account, error) {
		return s.stores.Accounts.FindByEmail(ctx, in.Email)
	})
	if err != nil {
		return nil, err
	}
	if !acc.IsVerified {
		err = retryErr(ctx, s, "accounts.mark_verified", func(ctx context.Context) error {
			return s.stores.Accounts.MarkVerified(ctx, in.Email)
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "account verified", "account_id", acc.ID, "purpose", ch.Purpose)
	}

	plain, err := generateResetToken(s.random)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rt := &ResetToken{
		ID:        uuid.NewString(),
		TokenHash: hashSecret(plain),
		Email:     in.Email,
		Purpose:   ch.Purpose,
		ExpiresAt: now.Add(s.opts.ResetTokenTTL),
		CreatedAt: now,
	}
	err = retryErr(ctx, s, "reset_tokens.create", func(ctx context.Context) error {
		return s.stores.Resets.Create(ctx, rt)
	})
	if err != nil {
		return nil, err
	}

	return &VerifyResult{ResetToken: plain, ExpiresAt: rt.ExpiresAt, Purpose: ch.Purpose}, nil
}

// ForgotPassword sends a reset code. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, in EmailInput) error {
	acc, err := s.lookupForCode(ctx, &in)
	if err != nil || acc == nil {
		return err
	}

	code, exp, err := s.codes.Issue(ctx, acc.Email, PurposeReset)
	if err != nil {
		return err
	}
	s.deliver(ctx, acc, code, PurposeReset, exp)
	return nil
}

// ResendCode re-issues a code with the purpose of the newest challenge for
// the email. Without any challenge on record it picks signup for unverified
// accounts and reset otherwise. Unknown emails succeed silently.
func (s *Service) ResendCode(ctx context.Context, in EmailInput) error {
	acc, err := s.lookupForCode(ctx, &in)
	if err != nil || acc == nil {
		return err
	}

	purpose, ok, err := s.codes.LatestPurpose(ctx, acc.Email)
	if err != nil {
		return err
	}
	if !ok {
		purpose = PurposeReset
		if !acc.IsVerified {
			purpose = PurposeSignup
		}
	}

	code, exp, err := s.codes.Issue(ctx, acc.Email, purpose)
	if err != nil {
		return err
	}
	s.deliver(ctx, acc, code, purpose, exp)
	return nil
}

// lookupForCode returns (nil, nil) for unknown emails.
func (s *Service) lookupForCode(ctx context.Context, in *EmailInput) (*Account, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	acc, err := retry(ctx, s, "accounts.find_email", func(ctx context.Context) (*Account, error) {
		return s.stores.Accounts.FindByEmail(ctx, in.Email)
	})
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug(ctx, "code requested for unknown email")
		return nil, nil
	}
	return acc, err
}

// ResetPassword spends a reset token, replaces the password hash and ends
// every session of the account.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := ValidateStruct(in); err != nil {
		return err
	}

	now := s.now()
	// A consume that committed but lost its reply must not be replayed as
	// an unknown token.
	rt, err := once(ctx, s, func(ctx context.Context) (*ResetToken, error) {
		return s.stores.Resets.Consume(ctx, hashSecret(in.Token), now)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return err
	}

	acc, err := retry(ctx, s, "accounts.find_email", func(ctx context.Context) (*Account, error) {
		return s.stores.Accounts.FindByEmail(ctx, rt.Email)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	err = retryErr(ctx, s, "accounts.update_password", func(ctx context.Context) error {
		return s.stores.Accounts.UpdatePasswordHash(ctx, acc.Email, hash)
	})
	if err != nil {
		return err
	}

	n, err := retry(ctx, s, "sessions.revoke_all", func(ctx context.Context) (int64, error) {
		return s.tokens.RevokeAll(ctx, acc.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "account_id", acc.ID, "sessions_revoked", n)
	return nil
}

// Logout revokes the session behind token. ErrSessionNotActive means the
// session had already ended.
func (s *Service) Logout(ctx context.Context, token string) error {
	return retryErr(ctx, s, "sessions.revoke", func(ctx context.Context) error {
		return s.tokens.Revoke(ctx, token)
	})
}

func (s *Service) Profile(ctx context.Context, accountID string) (*Account, error) {
	return retry(ctx, s, "accounts.find_id", func(ctx context.Context) (*Account, error) {
		return s.stores.Accounts.FindByID(ctx, accountID)
	})
}

// deliver sends the code without failing the request. It detaches from the
// request context so a client hanging up does not abort the send.
func (s *Service) deliver(ctx context.Context, acc *Account, code string, purpose Purpose, exp time.Time) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.DeliveryTimeout)
	defer cancel()

	err := s.mailer.Send(dctx, mail.Delivery{
		To:        acc.Email,
		Name:      acc.FullName,
		Code:      code,
		Purpose:   string(purpose),
		ExpiresAt: exp,
	})
	if err != nil {
		s.logger.Error(ctx, "code delivery failed", "account_id", acc.ID, "purpose", purpose, "error", err)
		return
	}
	s.logger.Info(ctx, "code delivered", "account_id", acc.ID, "purpose", purpose)
}
