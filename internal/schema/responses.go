package schema

// Response DTOs returned by the connector API. Unknown fields on these
// inbound shapes are ignored; no extension map is required.

// ResourceResponse identifies a resource created by the connector.
type ResourceResponse struct {
	ID string `json:"id"`
}

// ConversationResourceResponse is returned when a conversation is created.
type ConversationResourceResponse struct {
	ID         string `json:"id"`
	ActivityID string `json:"activityId,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
}

// PagedMembersResult is one page of conversation members.
type PagedMembersResult struct {
	ContinuationToken string                `json:"continuationToken,omitempty"`
	Members           []ConversationAccount `json:"members,omitempty"`
}

// ConversationParameters describes a conversation to be created.
type ConversationParameters struct {
	IsGroup     *bool                 `json:"isGroup,omitempty"`
	Bot         *ConversationAccount  `json:"bot,omitempty"`
	Members     []ConversationAccount `json:"members,omitempty"`
	TopicName   string                `json:"topicName,omitempty"`
	TenantID    string                `json:"tenantId,omitempty"`
	Activity    *Activity             `json:"activity,omitempty"`
	ChannelData *ChannelData          `json:"channelData,omitempty"`
}

// AttachmentData carries an attachment upload.
type AttachmentData struct {
	Type         string `json:"type,omitempty"`
	Name         string `json:"name,omitempty"`
	OriginalB64  []byte `json:"originalBase64,omitempty"`
	ThumbnailB64 []byte `json:"thumbnailBase64,omitempty"`
}
