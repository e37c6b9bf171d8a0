package dispatch

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/usertoken"
)

// TurnContext carries the inbound activity and the request-scoped
// protocol clients through a single dispatch. It is handed to handlers
// and invalidated when the dispatch completes, so clients captured by a
// handler cannot outlive their request.
type TurnContext struct {
	mu            sync.Mutex
	ended         bool
	activity      *schema.Activity
	conversations *connector.Client
	userTokens    *usertoken.Client
	tracer        Tracer
	log           *logging.Logger
}

func newTurn(activity *schema.Activity, conversations *connector.Client, userTokens *usertoken.Client, tracer Tracer, log *logging.Logger) *TurnContext {
	return &TurnContext{
		activity:      activity,
		conversations: conversations,
		userTokens:    userTokens,
		tracer:        tracer,
		log:           log,
	}
}

// Activity returns the inbound activity for this turn. The activity
// itself stays valid after the turn ends; only the clients are scoped.
func (t *TurnContext) Activity() *schema.Activity {
	return t.activity
}

// Conversations returns the turn's connector client, or ErrTurnEnded
// once the dispatch has finished.
func (t *TurnContext) Conversations() (*connector.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return nil, ErrTurnEnded
	}
	return t.conversations, nil
}

// UserTokens returns the turn's user-token client, or ErrTurnEnded once
// the dispatch has finished.
func (t *TurnContext) UserTokens() (*usertoken.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return nil, ErrTurnEnded
	}
	return t.userTokens, nil
}

// SendActivity posts an activity back to the conversation the inbound
// activity arrived on.
func (t *TurnContext) SendActivity(ctx context.Context, activity *schema.Activity) (*schema.ResourceResponse, error) {
	client, err := t.Conversations()
	if err != nil {
		return nil, err
	}
	resp, err := client.SendActivity(ctx, activity)
	if err != nil {
		return nil, err
	}
	t.trace(ctx, "out", activity)
	return resp, nil
}

// Reply sends a plain text reply addressed back to the sender of the
// inbound activity, threaded onto it when it has an id.
func (t *TurnContext) Reply(ctx context.Context, text string) (*schema.ResourceResponse, error) {
	reply := t.activity.CreateReply(text)
	if reply.ReplyToID == nil {
		return t.SendActivity(ctx, reply)
	}

	client, err := t.Conversations()
	if err != nil {
		return nil, err
	}
	resp, err := client.ReplyToActivity(ctx, reply)
	if err != nil {
		return nil, err
	}
	t.trace(ctx, "out", reply)
	return resp, nil
}

func (t *TurnContext) trace(ctx context.Context, direction string, activity *schema.Activity) {
	if t.tracer == nil {
		return
	}
	body, err := json.Marshal(activity)
	if err != nil {
		t.log.Warn().Err(err).Msg("could not serialize activity for trace")
		return
	}
	t.tracer.Record(ctx, direction, activity.Type, activity.GetID(), activity.ConversationID(), body)
}

// end releases the turn's scoped clients. Subsequent client access
// through this context fails with ErrTurnEnded.
func (t *TurnContext) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
	t.conversations = nil
	t.userTokens = nil
}
