package domain

// Contact is a conversation partner plus conversation summary data, as shown
// in a chat list.
type Contact struct {
	User        PublicUser `json:"user"`
	LastMessage *Message   `json:"last_message,omitempty"`
	UnreadCount int        `json:"unread_count"`
}
