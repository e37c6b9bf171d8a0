// Package teams decorates base activities with Microsoft Teams typing.
// Decoration is a pure, lossless projection: Teams-specific fields are
// promoted out of the extension maps into typed properties, the base
// activity is retained for everything else, and nothing is written back.
package teams

import "github.com/soyeahso/botway/internal/schema"

// Account is a conversation account with the Teams identity claim
// promoted from the extension map.
type Account struct {
	ID          string
	Name        string
	AADObjectID string

	// Base is the undecorated account for fallback field access.
	Base *schema.ConversationAccount
}

func decorateAccount(base *schema.ConversationAccount) *Account {
	if base == nil {
		return nil
	}
	a := &Account{
		ID:   base.GetID(),
		Name: base.GetName(),
		Base: base,
	}
	a.AADObjectID, _ = base.Properties.GetString("aadObjectId")
	return a
}

// Conversation promotes tenantId and conversationType.
type Conversation struct {
	ID               string
	TenantID         string
	ConversationType string

	Base *schema.Conversation
}

func decorateConversation(base *schema.Conversation) *Conversation {
	if base == nil {
		return nil
	}
	c := &Conversation{ID: base.GetID(), Base: base}
	c.TenantID, _ = base.Properties.GetString("tenantId")
	c.ConversationType, _ = base.Properties.GetString("conversationType")
	return c
}

// Activity is the Teams-flavored view of a base activity. All declared
// fields are copied; from/recipient/conversation/channelData are rebuilt
// with Teams typing. The base activity remains reachable for any field
// the decoration does not name.
type Activity struct {
	Type         string
	ID           string
	ChannelID    string
	ServiceURL   string
	Text         string
	ReplyToID    string
	From         *Account
	Recipient    *Account
	Conversation *Conversation
	ChannelData  *ChannelData

	Base *schema.Activity
}

// FromActivity builds the Teams view of a base activity.
func FromActivity(base *schema.Activity) *Activity {
	return &Activity{
		Type:         base.Type,
		ID:           base.GetID(),
		ChannelID:    base.GetChannelID(),
		ServiceURL:   base.GetServiceURL(),
		Text:         base.GetText(),
		ReplyToID:    derefStr(base.ReplyToID),
		From:         decorateAccount(base.From),
		Recipient:    decorateAccount(base.Recipient),
		Conversation: decorateConversation(base.Conversation),
		ChannelData:  decorateChannelData(base.ChannelData),
		Base:         base,
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
