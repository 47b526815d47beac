// Package mailtest provides a Mailer that records deliveries for tests.
package mailtest

import (
	"context"
	"sync"

	"github.com/lacpa/lacpa-backend/internal/mail"
)

type Recorder struct {
	mu         sync.Mutex
	deliveries []mail.Delivery

	// Err, when set, is returned from every Send after recording.
	Err error
}

func (r *Recorder) Send(_ context.Context, d mail.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return r.Err
}

func (r *Recorder) Deliveries() []mail.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mail.Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Last returns the most recent delivery to the address.
func (r *Recorder) Last(to string) (mail.Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.deliveries) - 1; i >= 0; i-- {
		if r.deliveries[i].To == to {
			return r.deliveries[i], true
		}
	}
	return mail.Delivery{}, false
}

func (r *Recorder) LastCode(to string) string {
	d, _ := r.Last(to)
	return d.Code
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}
