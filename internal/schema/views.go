package schema

// MessageReaction is a single reaction item (like, heart, ...).
type MessageReaction struct {
	Type string `json:"type"`
}

// MessageReactionView exposes the reaction arrays of a messageReaction
// activity as typed lists. It is a read-only projection built from the
// activity's extension map; the underlying activity is retained for
// access to any other field.
type MessageReactionView struct {
	Activity         *Activity
	ReactionsAdded   []MessageReaction
	ReactionsRemoved []MessageReaction
}

// NewMessageReactionView extracts reactionsAdded/reactionsRemoved from
// the activity's extension map, preserving order. Missing or mistyped
// arrays yield nil lists, never an error.
func NewMessageReactionView(a *Activity) *MessageReactionView {
	v := &MessageReactionView{Activity: a}
	a.Properties.GetObject("reactionsAdded", &v.ReactionsAdded)
	a.Properties.GetObject("reactionsRemoved", &v.ReactionsRemoved)
	return v
}

// ConversationUpdateView exposes the membership arrays of a
// conversationUpdate activity as typed account lists, order preserved,
// declared and extension fields of each member intact.
type ConversationUpdateView struct {
	Activity       *Activity
	MembersAdded   []ConversationAccount
	MembersRemoved []ConversationAccount
}

// NewConversationUpdateView extracts membersAdded/membersRemoved from
// the activity's extension map.
func NewConversationUpdateView(a *Activity) *ConversationUpdateView {
	v := &ConversationUpdateView{Activity: a}
	a.Properties.GetObject("membersAdded", &v.MembersAdded)
	a.Properties.GetObject("membersRemoved", &v.MembersRemoved)
	return v
}
