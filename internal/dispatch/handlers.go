package dispatch

import (
	"context"

	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/schema/teams"
)

// Handlers is the application's routing table. Every entry is optional;
// an activity with no matching handler is logged and acknowledged
// without error.
type Handlers struct {
	// OnActivity runs for every successfully bound activity, before the
	// type-specific handler.
	OnActivity func(ctx context.Context, turn *TurnContext) error

	OnMessage            func(ctx context.Context, turn *TurnContext) error
	OnMessageReaction    func(ctx context.Context, turn *TurnContext, view *schema.MessageReactionView) error
	OnConversationUpdate func(ctx context.Context, turn *TurnContext, view *schema.ConversationUpdateView) error
	OnInstallationUpdate func(ctx context.Context, turn *TurnContext, view *teams.InstallationUpdateView) error
}
