// Package mail delivers one-time verification codes to account holders.
package mail

import (
	"context"
	"time"
)

const (
	PurposeSignup = "signup"
	PurposeReset  = "reset"
)

// Delivery is one code to send. Code is the plaintext value the user types;
// it exists only in memory for the duration of Send.
type Delivery struct {
	To        string
	Name      string
	Code      string
	Purpose   string
	ExpiresAt time.Time
}

type Mailer interface {
	Send(ctx context.Context, d Delivery) error
}
