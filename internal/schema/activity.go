// Package schema implements the activity wire format exchanged with chat
// channels: a typed view over the declared fields plus a lossless
// extension map for everything else. Parsing splits an incoming JSON
// object into the two; serializing merges them back, reproducing explicit
// nulls and omitting fields that were never set.
package schema

import "encoding/json"

// Activity type discriminators routed by the dispatch runtime.
const (
	TypeMessage            = "message"
	TypeMessageReaction    = "messageReaction"
	TypeConversationUpdate = "conversationUpdate"
	TypeInstallationUpdate = "installationUpdate"
)

// activityFields lists the declared JSON keys of Activity.
var activityFields = []string{
	"type", "id", "channelId", "text", "serviceUrl", "replyToId",
	"channelData", "from", "recipient", "conversation", "entities",
}

// Activity is one unit of conversation exchange: a message, a reaction,
// a membership change, or any other event a channel delivers. Unknown
// top-level fields are carried in Properties.
type Activity struct {
	Type         string
	ID           *string
	ChannelID    *string
	Text         *string
	ServiceURL   *string
	ReplyToID    *string
	ChannelData  *ChannelData
	From         *ConversationAccount
	Recipient    *ConversationAccount
	Conversation *Conversation
	Entities     []json.RawMessage
	Properties   Properties

	nulls nullSet
}

// ParseActivity deserializes an inbound activity body. A body that is
// not a JSON object or lacks the type discriminator yields a
// *ValidationError.
func ParseActivity(data []byte) (*Activity, error) {
	var a Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ValidationError{Reason: "malformed body", Cause: err}
	}
	if a.Type == "" {
		return nil, &ValidationError{Reason: "missing activity type"}
	}
	return &a, nil
}

// UnmarshalJSON implements the parse half of the round-trip contract.
func (a *Activity) UnmarshalJSON(data []byte) error {
	declared := make(map[string]json.RawMessage)
	props, nulls, err := splitObject(data, activityFields, declared)
	if err != nil {
		return err
	}

	*a = Activity{Properties: props, nulls: nulls}

	for key, raw := range declared {
		var err error
		switch key {
		case "type":
			err = json.Unmarshal(raw, &a.Type)
		case "id":
			err = json.Unmarshal(raw, &a.ID)
		case "channelId":
			err = json.Unmarshal(raw, &a.ChannelID)
		case "text":
			err = json.Unmarshal(raw, &a.Text)
		case "serviceUrl":
			err = json.Unmarshal(raw, &a.ServiceURL)
		case "replyToId":
			err = json.Unmarshal(raw, &a.ReplyToID)
		case "channelData":
			err = json.Unmarshal(raw, &a.ChannelData)
		case "from":
			err = json.Unmarshal(raw, &a.From)
		case "recipient":
			err = json.Unmarshal(raw, &a.Recipient)
		case "conversation":
			err = json.Unmarshal(raw, &a.Conversation)
		case "entities":
			err = json.Unmarshal(raw, &a.Entities)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON implements the serialize half of the round-trip contract.
func (a Activity) MarshalJSON() ([]byte, error) {
	declared := make(map[string]json.RawMessage)
	if err := marshalField(declared, "type", a.Type); err != nil {
		return nil, err
	}
	set := map[string]any{}
	if a.ID != nil {
		set["id"] = a.ID
	}
	if a.ChannelID != nil {
		set["channelId"] = a.ChannelID
	}
	if a.Text != nil {
		set["text"] = a.Text
	}
	if a.ServiceURL != nil {
		set["serviceUrl"] = a.ServiceURL
	}
	if a.ReplyToID != nil {
		set["replyToId"] = a.ReplyToID
	}
	if a.ChannelData != nil {
		set["channelData"] = a.ChannelData
	}
	if a.From != nil {
		set["from"] = a.From
	}
	if a.Recipient != nil {
		set["recipient"] = a.Recipient
	}
	if a.Conversation != nil {
		set["conversation"] = a.Conversation
	}
	if a.Entities != nil {
		set["entities"] = a.Entities
	}
	for key, value := range set {
		if err := marshalField(declared, key, value); err != nil {
			return nil, err
		}
	}
	return mergeObject(declared, a.nulls, a.Properties)
}

// CreateReply builds the canonical reply to this activity: a message
// addressed back to the sender within the same conversation, threaded to
// this activity's id.
func (a *Activity) CreateReply(text string) *Activity {
	reply := &Activity{
		Type:         TypeMessage,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
		Conversation: a.Conversation,
		From:         a.Recipient,
		Recipient:    a.From,
		ReplyToID:    a.ID,
		Text:         &text,
	}
	return reply
}

// GetID returns the activity id, or empty string if unset.
func (a *Activity) GetID() string { return deref(a.ID) }

// GetChannelID returns the channel id, or empty string if unset.
func (a *Activity) GetChannelID() string { return deref(a.ChannelID) }

// GetText returns the message text, or empty string if unset.
func (a *Activity) GetText() string { return deref(a.Text) }

// GetServiceURL returns the outbound service base URL, or empty string.
func (a *Activity) GetServiceURL() string { return deref(a.ServiceURL) }

// ConversationID returns the conversation id, or empty string.
func (a *Activity) ConversationID() string {
	if a.Conversation == nil {
		return ""
	}
	return deref(a.Conversation.ID)
}

// String is a convenience for building optional string fields.
func String(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
