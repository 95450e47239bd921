package client

// Reaction is a viewer's stored reaction
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// ReactionState is the reaction part of a video or comment
type ReactionState struct {
	LikeCount      int64
	DislikeCount   int64
	ViewerReaction *Reaction
}

// ApplyReaction predicts the state after the viewer presses pressed. Pressing
// the stored reaction clears it; pressing the other one switches. Counts
// never drop below zero.
func ApplyReaction(s ReactionState, pressed Reaction) ReactionState {
	current := s.ViewerReaction

	if current != nil {
		switch *current {
		case ReactionLike:
			s.LikeCount = max(0, s.LikeCount-1)
		case ReactionDislike:
			s.DislikeCount = max(0, s.DislikeCount-1)
		}
	}

	if current != nil && *current == pressed {
		s.ViewerReaction = nil
		return s
	}

	switch pressed {
	case ReactionLike:
		s.LikeCount++
	case ReactionDislike:
		s.DislikeCount++
	}
	next := pressed
	s.ViewerReaction = &next
	return s
}

// SubscriptionState is the creator part of a video detail
type SubscriptionState struct {
	SubscriberCount int64
	IsSubscribed    bool
}

// ApplySubscription predicts the state after subscribing or unsubscribing.
// Repeating the current state leaves the count alone.
func ApplySubscription(s SubscriptionState, subscribe bool) SubscriptionState {
	if s.IsSubscribed == subscribe {
		return s
	}
	if subscribe {
		s.SubscriberCount++
	} else {
		s.SubscriberCount = max(0, s.SubscriberCount-1)
	}
	s.IsSubscribed = subscribe
	return s
}
