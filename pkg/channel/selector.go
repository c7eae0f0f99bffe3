package channel

import "slices"

// Selector resolves the channels a user can be reached on for a category.
type Selector struct {
	enabled []Channel
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithChannels restricts selection to the given channels, for example to the
// ones a deployment has providers for. Unknown channels are ignored.
func WithChannels(chs ...Channel) SelectorOption {
	return func(s *Selector) {
		s.enabled = s.enabled[:0]
		for _, ch := range chs {
			if ch.Valid() && !slices.Contains(s.enabled, ch) {
				s.enabled = append(s.enabled, ch)
			}
		}
	}
}

// NewSelector creates a selector that considers every channel by default.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{enabled: slices.Clone(All)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns eligible channels in the fixed order push, email, sms, whatsapp.
// A channel is eligible when the user has a valid destination for it and has not
// opted out of it for the category. The result may be empty.
func (s *Selector) Select(p Preference, cat Category) []Channel {
	out := make([]Channel, 0, len(s.enabled))
	for _, ch := range All {
		if !slices.Contains(s.enabled, ch) {
			continue
		}
		if p.OptedOut(cat, ch) {
			continue
		}
		if _, ok := Destination(p, ch); !ok {
			continue
		}
		out = append(out, ch)
	}
	return out
}
