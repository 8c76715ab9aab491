package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/filter"
)

// Reconciler applies events to a Store exactly once, keyed by entity ID.
// Text is sanitized here, at the single point of entry; the origin of an event
// (push stream or resolved local call) is irrelevant.
type Reconciler struct {
	store  *Store
	filter filter.Filter
	log    *zerolog.Logger
}

// NewReconciler builds a reconciler over store. A nil filter means text is stored verbatim.
func NewReconciler(store *Store, f filter.Filter, logger *zerolog.Logger) *Reconciler {
	if f == nil {
		f = filter.Identity
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{store: store, filter: f, log: logger}
}

// Apply mutates the store according to ev and reports whether anything changed.
// Invariants are re-validated after every mutation. The guards in the apply functions keep a
// violation unreachable, so there is no rollback: an error here is a store bug and the mutation
// stays applied.
func (r *Reconciler) Apply(ev Event) (bool, error) {
	var changed bool

	switch ev.Kind {
	case EventMessageCreated:
		changed = r.applyMessageCreated(ev.Message)
	case EventChannelCreated:
		changed = r.applyChannelCreated(ev.Channel)
	case EventChannelRenamed:
		changed = r.applyChannelRenamed(ev.Channel)
	case EventChannelRemoved:
		changed = r.applyChannelRemoved(ev.ChannelID)
	default:
		return false, fmt.Errorf("unknown event kind %d", int(ev.Kind))
	}

	if !changed {
		return false, nil
	}
	if err := r.store.Validate(); err != nil {
		return true, fmt.Errorf("invariant violated after %s: %w", ev.Kind, err)
	}
	return true, nil
}

func (r *Reconciler) applyMessageCreated(m Message) bool {
	if m.ID == "" {
		r.log.Warn().Msg("message without id ignored")
		return false
	}
	if r.store.HasMessage(m.ID) {
		r.log.Debug().Str("message_id", string(m.ID)).Msg("duplicate message ignored")
		return false
	}
	if !r.store.HasChannel(m.ChannelID) {
		r.log.Debug().
			Str("message_id", string(m.ID)).
			Str("channel_id", string(m.ChannelID)).
			Msg("message for unknown channel dropped")
		return false
	}

	m.Text = r.filter.Sanitize(m.Text)
	r.store.insertMessage(m)
	return true
}

func (r *Reconciler) applyChannelCreated(c Channel) bool {
	if c.ID == "" {
		r.log.Warn().Msg("channel without id ignored")
		return false
	}
	if r.store.HasChannel(c.ID) {
		r.log.Debug().Str("channel_id", string(c.ID)).Msg("duplicate channel ignored")
		return false
	}
	if r.store.WasRemoved(c.ID) {
		r.log.Debug().Str("channel_id", string(c.ID)).Msg("creation of removed channel ignored")
		return false
	}

	c.Name = r.filter.Sanitize(c.Name)
	r.store.insertChannel(c)
	r.store.EnsureSelection()
	return true
}

func (r *Reconciler) applyChannelRenamed(c Channel) bool {
	name := r.filter.Sanitize(c.Name)
	if !r.store.renameChannel(c.ID, name) {
		// Removed concurrently; last applied wins.
		r.log.Debug().Str("channel_id", string(c.ID)).Msg("rename for unknown channel ignored")
		return false
	}
	return true
}

func (r *Reconciler) applyChannelRemoved(id ID) bool {
	purged, ok := r.store.removeChannel(id)
	if !ok {
		return false
	}
	r.store.ReselectAfterRemoval(id)
	r.log.Debug().
		Str("channel_id", string(id)).
		Int("messages_purged", purged).
		Str("current_channel_id", string(r.store.currentChannelID)).
		Msg("channel removed")
	return true
}
