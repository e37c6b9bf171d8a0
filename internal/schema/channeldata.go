package schema

import "encoding/json"

var channelDataFields = []string{"clientActivityId"}

// ChannelData is the opaque channel-specific payload attached to an
// activity. Only clientActivityId is declared; channel decorations
// project richer structures out of Properties without mutating it.
type ChannelData struct {
	ClientActivityID *string
	Properties       Properties

	nulls nullSet
}

// UnmarshalJSON preserves unknown keys in Properties.
func (c *ChannelData) UnmarshalJSON(data []byte) error {
	declared := make(map[string]json.RawMessage)
	props, nulls, err := splitObject(data, channelDataFields, declared)
	if err != nil {
		return err
	}
	*c = ChannelData{Properties: props, nulls: nulls}
	if raw, ok := declared["clientActivityId"]; ok {
		if err := json.Unmarshal(raw, &c.ClientActivityID); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON merges the declared fields and the extension map.
func (c ChannelData) MarshalJSON() ([]byte, error) {
	declared := make(map[string]json.RawMessage)
	if c.ClientActivityID != nil {
		if err := marshalField(declared, "clientActivityId", c.ClientActivityID); err != nil {
			return nil, err
		}
	}
	return mergeObject(declared, c.nulls, c.Properties)
}

// GetClientActivityID returns the client activity id, or empty string.
func (c *ChannelData) GetClientActivityID() string { return deref(c.ClientActivityID) }
