package core

import "fmt"

// EnsureSelection selects the first channel when nothing is selected.
func (s *Store) EnsureSelection() bool {
	if s.currentChannelID != "" || len(s.channels) == 0 {
		return false
	}
	s.currentChannelID = s.channels[0].ID
	return true
}

// ReselectAfterRemoval repairs the selection after channel removed is gone. A selection that
// pointed elsewhere is kept. Otherwise the first protected default channel wins, then the first
// remaining channel, then nothing.
func (s *Store) ReselectAfterRemoval(removed ID) bool {
	if s.currentChannelID != removed {
		return false
	}
	s.currentChannelID = ""
	for _, c := range s.channels {
		if !c.Removable {
			s.currentChannelID = c.ID
			return true
		}
	}
	if len(s.channels) > 0 {
		s.currentChannelID = s.channels[0].ID
	}
	return true
}

// Select switches the current channel. Unknown IDs leave the store untouched.
func (s *Store) Select(id ID) error {
	if !s.HasChannel(id) {
		return fmt.Errorf("%w: channel %q", ErrInvalidSelection, id)
	}
	s.currentChannelID = id
	return nil
}
