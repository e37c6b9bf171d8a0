package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/schema/teams"
	"github.com/soyeahso/botway/internal/usertoken"
)

// Tracer records activities flowing through the runtime. Direction is
// "in" for received activities and "out" for sent ones.
type Tracer interface {
	Record(ctx context.Context, direction, activityType, activityID, conversationID string, body []byte)
}

// MultiTracer fans each Record call out to several tracers. Nil
// entries are skipped.
func MultiTracer(tracers ...Tracer) Tracer {
	var active multiTracer
	for _, t := range tracers {
		if t != nil {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return active
}

type multiTracer []Tracer

func (m multiTracer) Record(ctx context.Context, direction, activityType, activityID, conversationID string, body []byte) {
	for _, t := range m {
		t.Record(ctx, direction, activityType, activityID, conversationID, body)
	}
}

// ConversationFactory builds a connector client rooted at the inbound
// activity's service URL. Called once per dispatched request.
type ConversationFactory func(activity *schema.Activity) *connector.Client

// UserTokenFactory builds a user-token client. Called once per
// dispatched request.
type UserTokenFactory func() *usertoken.Client

type state string

const (
	stateAuthenticating state = "authenticating"
	stateParsing        state = "parsing"
	stateBound          state = "bound"
	stateRouting        state = "routing"
	stateCompleted      state = "completed"
	stateFaulted        state = "faulted"
)

// Runtime drives a single inbound request through authentication,
// parsing, client binding, routing and release.
type Runtime struct {
	handlers      Handlers
	authenticator auth.RequestAuthenticator
	conversations ConversationFactory
	userTokens    UserTokenFactory
	tracer        Tracer
	observe       func(activityType, outcome string)
	processed     func(activity *schema.Activity, status string)
	log           *logging.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTracer records every inbound and outbound activity.
func WithTracer(t Tracer) Option {
	return func(r *Runtime) { r.tracer = t }
}

// WithObserver reports the outcome of each dispatch, keyed by activity
// type. Outcome is "ok", "ignored" or "error".
func WithObserver(fn func(activityType, outcome string)) Option {
	return func(r *Runtime) { r.observe = fn }
}

// WithProcessedHook runs after each successful dispatch with the bound
// activity and the status string.
func WithProcessedHook(fn func(activity *schema.Activity, status string)) Option {
	return func(r *Runtime) { r.processed = fn }
}

// New builds a dispatch runtime.
func New(handlers Handlers, authenticator auth.RequestAuthenticator, conversations ConversationFactory, userTokens UserTokenFactory, log *logging.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		handlers:      handlers,
		authenticator: authenticator,
		conversations: conversations,
		userTokens:    userTokens,
		log:           log.Sub("dispatch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process runs one inbound request through the dispatch state machine
// and returns a short status string naming the activity type that was
// handled. The request-scoped clients are released before Process
// returns, whether it succeeds or faults.
func (r *Runtime) Process(ctx context.Context, req *http.Request) (string, error) {
	r.transition(stateAuthenticating)
	if r.authenticator == nil {
		return r.fault("", &ConfigError{Missing: "request authenticator"})
	}
	if err := r.authenticator.Authenticate(req); err != nil {
		return r.fault("", err)
	}

	r.transition(stateParsing)
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return r.fault("", &schema.ValidationError{Reason: "could not read request body", Cause: err})
	}
	activity, err := schema.ParseActivity(body)
	if err != nil {
		return r.fault("", err)
	}

	if r.conversations == nil {
		return r.fault(activity.Type, &ConfigError{Missing: "conversation client factory"})
	}
	if r.userTokens == nil {
		return r.fault(activity.Type, &ConfigError{Missing: "user token client factory"})
	}
	turn := newTurn(activity, r.conversations(activity), r.userTokens(), r.tracer, r.log)
	defer turn.end()
	r.transition(stateBound)

	if r.tracer != nil {
		r.tracer.Record(ctx, "in", activity.Type, activity.GetID(), activity.ConversationID(), body)
	}

	r.transition(stateRouting)
	routed, err := r.route(ctx, turn, activity)
	if err != nil {
		return r.fault(activity.Type, err)
	}

	r.transition(stateCompleted)
	status := fmt.Sprintf("processed activity: %s", activity.Type)
	outcome := "ok"
	if !routed {
		outcome = "ignored"
	}
	if r.observe != nil {
		r.observe(activity.Type, outcome)
	}
	if r.processed != nil {
		r.processed(activity, status)
	}
	r.log.Debug().Str("type", activity.Type).Str("outcome", outcome).Msg("dispatch complete")
	return status, nil
}

func (r *Runtime) route(ctx context.Context, turn *TurnContext, activity *schema.Activity) (bool, error) {
	if r.handlers.OnActivity != nil {
		if err := r.handlers.OnActivity(ctx, turn); err != nil {
			return false, err
		}
	}
	switch activity.Type {
	case schema.TypeMessage:
		if r.handlers.OnMessage == nil {
			return false, nil
		}
		return true, r.handlers.OnMessage(ctx, turn)
	case schema.TypeMessageReaction:
		if r.handlers.OnMessageReaction == nil {
			return false, nil
		}
		return true, r.handlers.OnMessageReaction(ctx, turn, schema.NewMessageReactionView(activity))
	case schema.TypeConversationUpdate:
		if r.handlers.OnConversationUpdate == nil {
			return false, nil
		}
		return true, r.handlers.OnConversationUpdate(ctx, turn, schema.NewConversationUpdateView(activity))
	case schema.TypeInstallationUpdate:
		if r.handlers.OnInstallationUpdate == nil {
			return false, nil
		}
		return true, r.handlers.OnInstallationUpdate(ctx, turn, teams.NewInstallationUpdateView(teams.FromActivity(activity)))
	default:
		r.log.Info().Str("type", activity.Type).Msg("no handler for activity type")
		return false, nil
	}
}

func (r *Runtime) fault(activityType string, err error) (string, error) {
	r.transition(stateFaulted)
	if r.observe != nil {
		t := activityType
		if t == "" {
			t = "unknown"
		}
		r.observe(t, "error")
	}
	r.log.Warn().Err(err).Msg("dispatch faulted")
	return "", err
}

func (r *Runtime) transition(s state) {
	if r.log.TraceEnabled() {
		r.log.Trace().Str("state", string(s)).Msg("dispatch state")
	}
}
