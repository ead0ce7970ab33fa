// Package watcher drives the poll loop: authenticate, search, notify new
// slots, persist which ones were announced, sleep, repeat until stopped.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/luxmed-sniper/internal/luxmed"
	"github.com/example/luxmed-sniper/internal/seen"
)

// SlotSource is the authenticated portal search surface.
type SlotSource interface {
	Authenticate(ctx context.Context) (luxmed.Session, error)
	Search(ctx context.Context, s luxmed.Session, f luxmed.Filter) ([]luxmed.Appointment, error)
}

// Notifier delivers one new-slot message. An error means delivery failed
// and the slot must stay eligible for the next cycle.
type Notifier interface {
	Notify(ctx context.Context, a luxmed.Appointment) error
}

// SessionCache optionally carries the portal session across restarts.
type SessionCache interface {
	Load() (luxmed.Session, bool)
	Save(s luxmed.Session) error
}

type Watcher struct {
	Source   SlotSource
	Store    seen.Store
	Notifier Notifier
	Filter   luxmed.Filter
	Interval time.Duration
	Cache    SessionCache // optional
	Log      zerolog.Logger
}

// Run polls until ctx is cancelled or a fatal condition is hit: an
// account lock, a credential rejection at startup, or a second
// consecutive authentication failure mid-run. Every other failure is
// absorbed at the cycle boundary and the loop continues.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	set, err := w.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load seen store: %w", err)
	}
	w.Log.Info().Int("seen", set.Len()).Msg("seen store loaded")

	// A cached session satisfies INIT; it is validated lazily by the
	// first search, which falls into the usual re-auth path if stale.
	sess, ok := w.cachedSession()
	if !ok {
		sess, err = w.authenticate(ctx)
		if err != nil {
			return err
		}
	}

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	for {
		sess, err = w.cycle(ctx, sess, set)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// authenticate performs the INIT transition. A lock or a credential
// rejection ends the process: hammering a locked account can make the
// lock permanent, and bad credentials are a configuration problem, not a
// transient one.
func (w *Watcher) authenticate(ctx context.Context) (luxmed.Session, error) {
	sess, err := w.Source.Authenticate(ctx)
	if err != nil {
		return luxmed.Session{}, err
	}
	w.Log.Info().Msg("authenticated against the portal")
	w.saveSession(sess)
	return sess, nil
}

// cycle runs one poll: search, diff, notify, flush. It returns the
// session to use next cycle, replaced atomically when a re-auth happened.
func (w *Watcher) cycle(ctx context.Context, sess luxmed.Session, set seen.Set) (luxmed.Session, error) {
	records, err := w.Source.Search(ctx, sess, w.Filter)
	if luxmed.IsAuthError(err) {
		// Session expired mid-poll: re-authenticate once and retry the
		// search once. A second consecutive auth failure is fatal.
		w.Log.Info().Msg("session rejected mid-cycle, re-authenticating")
		fresh, aerr := w.Source.Authenticate(ctx)
		if aerr != nil {
			if luxmed.IsAuthError(aerr) {
				return sess, fmt.Errorf("re-authentication: %w", aerr)
			}
			w.Log.Warn().Err(aerr).Msg("re-authentication failed, will retry next cycle")
			return sess, nil
		}
		sess = fresh
		w.saveSession(sess)
		records, err = w.Source.Search(ctx, sess, w.Filter)
		if luxmed.IsAuthError(err) {
			return sess, fmt.Errorf("search rejected after re-authentication: %w", err)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return sess, ctx.Err()
		}
		w.Log.Warn().Err(err).Msg("search failed, will retry next cycle")
		return sess, nil
	}

	w.notifyNew(ctx, records, set)
	return sess, nil
}

// notifyNew announces unseen records in the response's order. A record is
// marked seen only after its notification went out, so a failed delivery
// leaves it eligible for the next cycle (at-least-once delivery). The
// store is flushed once per batch.
func (w *Watcher) notifyNew(ctx context.Context, records []luxmed.Appointment, set seen.Set) {
	var notified int
	for _, r := range records {
		id := r.ID()
		if set.Contains(id) {
			continue
		}
		w.Log.Info().
			Str("date", r.FormattedDate).
			Str("clinic", r.ClinicName).
			Str("doctor", r.DoctorName).
			Msg("appointment found")
		if err := w.Notifier.Notify(ctx, r); err != nil {
			w.Log.Warn().Err(err).Str("id", id).Msg("notification failed, slot stays eligible")
			continue
		}
		// Marking immediately also covers an id duplicated within the
		// same response batch.
		set.Add(id)
		notified++
	}

	if notified == 0 {
		w.Log.Info().Int("results", len(records)).Msg("no new appointments")
		return
	}
	if err := w.Store.Flush(ctx, set); err != nil {
		w.Log.Error().Err(err).Msg("could not persist seen store; duplicates possible after a restart")
	}
	w.Log.Info().Int("notified", notified).Int("seen", set.Len()).Msg("notifications sent")
}

func (w *Watcher) cachedSession() (luxmed.Session, bool) {
	if w.Cache == nil {
		return luxmed.Session{}, false
	}
	s, ok := w.Cache.Load()
	if ok {
		w.Log.Info().Msg("reusing cached portal session")
	}
	return s, ok
}

func (w *Watcher) saveSession(s luxmed.Session) {
	if w.Cache == nil {
		return
	}
	if err := w.Cache.Save(s); err != nil {
		w.Log.Warn().Err(err).Msg("could not persist session cache")
	}
}
