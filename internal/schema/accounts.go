package schema

import "encoding/json"

var accountFields = []string{"id", "name"}

// ConversationAccount identifies a participant in a conversation. Channel
// specific identity claims (aadObjectId and friends) ride in Properties.
type ConversationAccount struct {
	ID         *string
	Name       *string
	Properties Properties

	nulls nullSet
}

// UnmarshalJSON preserves unknown keys in Properties.
func (c *ConversationAccount) UnmarshalJSON(data []byte) error {
	declared := make(map[string]json.RawMessage)
	props, nulls, err := splitObject(data, accountFields, declared)
	if err != nil {
		return err
	}
	*c = ConversationAccount{Properties: props, nulls: nulls}
	if raw, ok := declared["id"]; ok {
		if err := json.Unmarshal(raw, &c.ID); err != nil {
			return err
		}
	}
	if raw, ok := declared["name"]; ok {
		if err := json.Unmarshal(raw, &c.Name); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON merges the declared fields and the extension map.
func (c ConversationAccount) MarshalJSON() ([]byte, error) {
	declared := make(map[string]json.RawMessage)
	if c.ID != nil {
		if err := marshalField(declared, "id", c.ID); err != nil {
			return nil, err
		}
	}
	if c.Name != nil {
		if err := marshalField(declared, "name", c.Name); err != nil {
			return nil, err
		}
	}
	return mergeObject(declared, c.nulls, c.Properties)
}

// GetID returns the account id, or empty string if unset.
func (c *ConversationAccount) GetID() string { return deref(c.ID) }

// GetName returns the display name, or empty string if unset.
func (c *ConversationAccount) GetName() string { return deref(c.Name) }

var conversationFields = []string{"id"}

// Conversation identifies the conversation an activity belongs to.
// Channel-specific attributes (tenantId, conversationType) ride in
// Properties until a channel decoration promotes them.
type Conversation struct {
	ID         *string
	Properties Properties

	nulls nullSet
}

// UnmarshalJSON preserves unknown keys in Properties.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	declared := make(map[string]json.RawMessage)
	props, nulls, err := splitObject(data, conversationFields, declared)
	if err != nil {
		return err
	}
	*c = Conversation{Properties: props, nulls: nulls}
	if raw, ok := declared["id"]; ok {
		if err := json.Unmarshal(raw, &c.ID); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON merges the declared fields and the extension map.
func (c Conversation) MarshalJSON() ([]byte, error) {
	declared := make(map[string]json.RawMessage)
	if c.ID != nil {
		if err := marshalField(declared, "id", c.ID); err != nil {
			return nil, err
		}
	}
	return mergeObject(declared, c.nulls, c.Properties)
}

// GetID returns the conversation id, or empty string if unset.
func (c *Conversation) GetID() string { return deref(c.ID) }
