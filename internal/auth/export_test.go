package auth

import "time"

// SetClock pins every time source of s to now.
func SetClock(s *Service, now func() time.Time) {
	s.now = now
	s.codes.now = now
	s.tokens.now = now
}
