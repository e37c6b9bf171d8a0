package dispatch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/usertoken"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testFactories() (ConversationFactory, UserTokenFactory) {
	provider := &auth.StaticTokenProvider{Token: "t"}
	log := testLogger()
	return func(activity *schema.Activity) *connector.Client {
			return connector.New(activity, connector.DefaultScope, provider, log)
		}, func() *usertoken.Client {
			return usertoken.New(provider, log)
		}
}

func testRuntime(handlers Handlers, opts ...Option) *Runtime {
	conv, ut := testFactories()
	return New(handlers, auth.AllowAll{}, conv, ut, testLogger(), opts...)
}

func activityRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(body))
}

func TestProcessRoutesMessage(t *testing.T) {
	var gotText string
	rt := testRuntime(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			gotText = turn.Activity().GetText()
			return nil
		},
	})

	status, err := rt.Process(context.Background(), activityRequest(`{"type": "message", "text": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "processed activity: message", status)
	assert.Equal(t, "hi", gotText)
}

func TestProcessRoutesReaction(t *testing.T) {
	var added int
	rt := testRuntime(Handlers{
		OnMessageReaction: func(ctx context.Context, turn *TurnContext, view *schema.MessageReactionView) error {
			added = len(view.ReactionsAdded)
			return nil
		},
	})

	status, err := rt.Process(context.Background(),
		activityRequest(`{"type": "messageReaction", "reactionsAdded": [{"type": "like"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "processed activity: messageReaction", status)
	assert.Equal(t, 1, added)
}

func TestProcessUnknownTypeIsAcknowledged(t *testing.T) {
	rt := testRuntime(Handlers{})

	status, err := rt.Process(context.Background(), activityRequest(`{"type": "typing"}`))
	require.NoError(t, err)
	assert.Equal(t, "processed activity: typing", status)
}

func TestProcessNoHandlerForKnownType(t *testing.T) {
	var outcome string
	rt := testRuntime(Handlers{}, WithObserver(func(activityType, o string) {
		outcome = o
	}))

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message", "text": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome)
}

func TestProcessMalformedBody(t *testing.T) {
	rt := testRuntime(Handlers{})

	_, err := rt.Process(context.Background(), activityRequest(`{"text": "no type"}`))
	require.Error(t, err)

	var validationErr *schema.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestProcessAuthFailure(t *testing.T) {
	conv, ut := testFactories()
	rt := New(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			t.Fatal("handler must not run on auth failure")
			return nil
		},
	}, &auth.StaticToken{Token: "expected"}, conv, ut, testLogger())

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	assert.True(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestProcessMissingFactoryIsConfigError(t *testing.T) {
	_, ut := testFactories()
	rt := New(Handlers{}, auth.AllowAll{}, nil, ut, testLogger())

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	require.Error(t, err)

	var configErr *ConfigError
	assert.True(t, errors.As(err, &configErr))
}

func TestHandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	rt := testRuntime(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			return boom
		},
	})

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	assert.True(t, errors.Is(err, boom))
}

func TestOnActivityRunsBeforeTypedHandler(t *testing.T) {
	var order []string
	rt := testRuntime(Handlers{
		OnActivity: func(ctx context.Context, turn *TurnContext) error {
			order = append(order, "activity")
			return nil
		},
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			order = append(order, "message")
			return nil
		},
	})

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"activity", "message"}, order)
}

func TestClientsReleasedAfterProcess(t *testing.T) {
	var captured *TurnContext
	rt := testRuntime(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			captured = turn
			// Inside the turn the clients are live.
			_, err := turn.Conversations()
			require.NoError(t, err)
			_, err = turn.UserTokens()
			require.NoError(t, err)
			return nil
		},
	})

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	require.NoError(t, err)
	require.NotNil(t, captured)

	_, err = captured.Conversations()
	assert.True(t, errors.Is(err, ErrTurnEnded))
	_, err = captured.UserTokens()
	assert.True(t, errors.Is(err, ErrTurnEnded))
	_, err = captured.SendActivity(context.Background(), captured.Activity().CreateReply("late"))
	assert.True(t, errors.Is(err, ErrTurnEnded))

	// The activity itself stays readable.
	assert.Equal(t, "message", captured.Activity().Type)
}

func TestClientsReleasedAfterFault(t *testing.T) {
	var captured *TurnContext
	rt := testRuntime(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error {
			captured = turn
			return errors.New("handler failed")
		},
	})

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	require.Error(t, err)

	_, err = captured.Conversations()
	assert.True(t, errors.Is(err, ErrTurnEnded))
}

type recordingTracer struct {
	directions []string
	types      []string
}

func (r *recordingTracer) Record(_ context.Context, direction, activityType, _, _ string, _ []byte) {
	r.directions = append(r.directions, direction)
	r.types = append(r.types, activityType)
}

func TestTracerRecordsInbound(t *testing.T) {
	tracer := &recordingTracer{}
	rt := testRuntime(Handlers{}, WithTracer(tracer))

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message", "id": "a1"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, tracer.directions)
	assert.Equal(t, []string{"message"}, tracer.types)
}

func TestMultiTracer(t *testing.T) {
	first := &recordingTracer{}
	second := &recordingTracer{}

	combined := MultiTracer(first, nil, second)
	require.NotNil(t, combined)
	combined.Record(context.Background(), "in", "message", "", "", nil)
	assert.Len(t, first.directions, 1)
	assert.Len(t, second.directions, 1)

	assert.Nil(t, MultiTracer(nil, nil))
}

func TestProcessedHook(t *testing.T) {
	var gotStatus string
	rt := testRuntime(Handlers{}, WithProcessedHook(func(activity *schema.Activity, status string) {
		gotStatus = status
	}))

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "conversationUpdate"}`))
	require.NoError(t, err)
	assert.Equal(t, "processed activity: conversationUpdate", gotStatus)
}

func TestObserverOutcomes(t *testing.T) {
	outcomes := map[string]string{}
	rt := testRuntime(Handlers{
		OnMessage: func(ctx context.Context, turn *TurnContext) error { return nil },
	}, WithObserver(func(activityType, outcome string) {
		outcomes[activityType] = outcome
	}))

	_, err := rt.Process(context.Background(), activityRequest(`{"type": "message"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", outcomes["message"])

	_, err = rt.Process(context.Background(), activityRequest(`not json`))
	require.Error(t, err)
	assert.Equal(t, "error", outcomes["unknown"])
}
