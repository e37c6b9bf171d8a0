package usertoken

// TokenStatus reports whether a user holds a token for a connection.
type TokenStatus struct {
	ConnectionName             string `json:"connectionName,omitempty"`
	HasToken                   bool   `json:"hasToken"`
	ServiceProviderDisplayName string `json:"serviceProviderDisplayName,omitempty"`
}

// TokenResult is a redeemed user token.
type TokenResult struct {
	ConnectionName string `json:"connectionName,omitempty"`
	Token          string `json:"token,omitempty"`
}

// TokenPostResource carries the SAS endpoint a client posts tokens to.
type TokenPostResource struct {
	SasURL string `json:"sasUrl,omitempty"`
}

// SignInLink is the resource a user follows to complete sign-in.
type SignInLink struct {
	SignInLink        string             `json:"signInLink,omitempty"`
	TokenPostResource *TokenPostResource `json:"tokenPostResource,omitempty"`
}

// SignInResource is the token-or-sign-in response: a token when the
// user is already authenticated, otherwise the resource to send them
// through the sign-in flow.
type SignInResource struct {
	TokenResponse  *TokenResult `json:"tokenResponse,omitempty"`
	SignInResource *SignInLink  `json:"signInResource,omitempty"`
}
