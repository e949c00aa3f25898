package ideclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/rlsp/idl/mock/jsonrpc2mock"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/factory"
	"github.com/uber/rlsp/src/rlsp/internal/clock/clocktest"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func getTestGateway(t *testing.T) (*gateway, *jsonrpc2mock.MockConn, *clocktest.Fake, context.Context) {
	ctrl := gomock.NewController(t)
	fake := clocktest.New()
	g := New(zap.NewNop(), fake).(*gateway)
	id := factory.UUID()
	ctx := mapper.SessionUUIDToContext(context.Background(), id)
	mockConn := jsonrpc2mock.NewMockConn(ctrl)
	require.NoError(t, g.RegisterClient(ctx, id, mockConn))
	return g, mockConn, fake, ctx
}

func TestRegisterClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	g := New(zap.NewNop(), clocktest.New()).(*gateway)

	ids := make([]uuid.UUID, 0, 10)
	for i := 0; i < 10; i++ {
		id := factory.UUID()
		ids = append(ids, id)
		assert.NoError(t, g.RegisterClient(ctx, id, jsonrpc2mock.NewMockConn(ctrl)))
	}
	assert.Len(t, g.clients, 10)
	assert.Len(t, g.connections, 10)

	for _, id := range ids {
		assert.NoError(t, g.DeregisterClient(ctx, id))
		assert.Nil(t, g.clients[id])
	}
	assert.Len(t, g.clients, 0)
	assert.Len(t, g.connections, 0)
}

func TestShowMessage(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	messageParams := &protocol.ShowMessageParams{
		Message: "Remote language server attached.",
		Type:    protocol.MessageTypeInfo,
	}

	t.Run("notification success", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessage), gomock.Eq(messageParams)).Return(nil)
		assert.NoError(t, g.ShowMessage(ctx, messageParams))
	})
	t.Run("notification failure", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessage), gomock.Eq(messageParams)).Return(errors.New("error"))
		assert.Error(t, g.ShowMessage(ctx, messageParams))
	})
	t.Run("invalid context", func(t *testing.T) {
		assert.Error(t, g.ShowMessage(context.Background(), messageParams))
	})
	t.Run("client not found", func(t *testing.T) {
		ctx := mapper.SessionUUIDToContext(context.Background(), factory.UUID())
		assert.Error(t, g.ShowMessage(ctx, messageParams))
	})
}

func TestShowMessageRequest(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	messageParams := &protocol.ShowMessageRequestParams{
		Message: "Install pyright on devbox?",
		Type:    protocol.MessageTypeInfo,
	}

	t.Run("call success", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(messageParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.NoError(t, err)
	})
	t.Run("call failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(messageParams), gomock.Any()).Return(jsonrpc2.NewNumberID(5), errors.New("error"))
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.Error(t, err)
	})
	t.Run("progress create failure", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), errors.New("error"))
		_, err := g.ShowMessageRequest(ctx, messageParams)
		assert.Error(t, err)
	})
	t.Run("errors skip the progress hint", func(t *testing.T) {
		params := &protocol.ShowMessageRequestParams{Message: "failed", Type: protocol.MessageTypeError}
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Eq(params), gomock.Any()).Return(jsonrpc2.NewNumberID(5), nil)
		_, err := g.ShowMessageRequest(ctx, params)
		assert.NoError(t, err)
	})
	t.Run("invalid context", func(t *testing.T) {
		_, err := g.ShowMessageRequest(context.Background(), messageParams)
		assert.Error(t, err)
	})
}

func TestShowWaitingForUserSelection(t *testing.T) {
	g, mockConn, fake, ctx := getTestGateway(t)

	t.Run("success without delay", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		done, err := g.showWaitingForUserSelection(ctx)
		require.NoError(t, err)
		done()
		assert.Equal(t, 0, fake.Pending())
	})

	t.Run("success with delay", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(3)
		done, err := g.showWaitingForUserSelection(ctx)
		require.NoError(t, err)
		fake.Advance(_timeoutUserSelectionMoreInfo + time.Second)
		done()
	})

	t.Run("ends on its own", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(3)
		done, err := g.showWaitingForUserSelection(ctx)
		require.NoError(t, err)
		fake.Advance(_timeoutUserSelectionEnd)
		done()
	})

	t.Run("start progress error", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(errors.New("sample"))
		_, err := g.showWaitingForUserSelection(ctx)
		assert.Error(t, err)
	})
}

func TestCallAndNotify(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	t.Run("call returns raw result", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), "workspace/configuration", gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, _ interface{}, result interface{}) (jsonrpc2.ID, error) {
				*(result.(*json.RawMessage)) = json.RawMessage(`[{"python":{}}]`)
				return jsonrpc2.NewNumberID(1), nil
			})
		raw, err := g.Call(ctx, "workspace/configuration", map[string]interface{}{"items": []interface{}{}})
		require.NoError(t, err)
		assert.JSONEq(t, `[{"python":{}}]`, string(raw))
	})
	t.Run("call error", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), "client/registerCapability", gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(1), errors.New("error"))
		_, err := g.Call(ctx, "client/registerCapability", nil)
		assert.Error(t, err)
	})
	t.Run("notify", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Eq(ctx), "$/progress", "p").Return(nil)
		assert.NoError(t, g.Notify(ctx, "$/progress", "p"))
	})
	t.Run("client not found", func(t *testing.T) {
		_, err := g.Call(context.Background(), "m", nil)
		assert.Error(t, err)
		assert.Error(t, g.Notify(context.Background(), "m", nil))
	})
}

func TestReport(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	tests := []struct {
		severity entity.Severity
		want     protocol.MessageType
	}{
		{entity.SeverityInfo, protocol.MessageTypeInfo},
		{entity.SeverityWarning, protocol.MessageTypeWarning},
		{entity.SeverityError, protocol.MessageTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			mockConn.EXPECT().Notify(gomock.Eq(ctx), protocol.MethodWindowShowMessage, &protocol.ShowMessageParams{Message: "m", Type: tt.want}).Return(nil)
			g.Report(ctx, tt.severity, "m")
		})
	}

	t.Run("failure is swallowed", func(t *testing.T) {
		mockConn.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("closed"))
		assert.NotPanics(t, func() { g.Report(ctx, entity.SeverityError, "m") })
	})
}

func TestConfirm(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	expectPrompt := func() *gomock.Call {
		mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWorkDoneProgressCreate), gomock.Any(), gomock.Any()).Return(jsonrpc2.NewNumberID(4), nil)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), gomock.Eq(protocol.MethodProgress), gomock.Any()).Return(nil).Times(2)
		return mockConn.EXPECT().Call(gomock.Eq(ctx), gomock.Eq(protocol.MethodWindowShowMessageRequest), gomock.Any(), gomock.Any())
	}

	type answer struct {
		choice string
		ok     bool
	}
	confirm := func() answer {
		answers := make(chan answer, 1)
		g.Confirm(ctx, "Install?", []string{"Install", "Cancel"}, func(choice string, ok bool) {
			answers <- answer{choice, ok}
		})
		return <-answers
	}

	t.Run("chosen", func(t *testing.T) {
		expectPrompt().DoAndReturn(func(_ context.Context, _ string, params interface{}, result interface{}) (jsonrpc2.ID, error) {
			p := params.(*protocol.ShowMessageRequestParams)
			assert.Equal(t, []protocol.MessageActionItem{{Title: "Install"}, {Title: "Cancel"}}, p.Actions)
			item := &protocol.MessageActionItem{Title: "Install"}
			switch r := result.(type) {
			case **protocol.MessageActionItem:
				*r = item
			case *protocol.MessageActionItem:
				*r = *item
			}
			return jsonrpc2.NewNumberID(5), nil
		})
		assert.Equal(t, answer{"Install", true}, confirm())
	})
	t.Run("dismissed", func(t *testing.T) {
		expectPrompt().Return(jsonrpc2.NewNumberID(5), nil)
		assert.Equal(t, answer{"", false}, confirm())
	})
	t.Run("error", func(t *testing.T) {
		expectPrompt().Return(jsonrpc2.NewNumberID(5), errors.New("closed"))
		assert.Equal(t, answer{"", false}, confirm())
	})
}

func TestInput(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)
	req := entity.InputRequest{Kind: entity.InputEnvironment, Prompt: "Remote environment path", Default: "/opt/venv"}

	input := func() entity.InputResponse {
		responses := make(chan entity.InputResponse, 1)
		g.Input(ctx, req, func(resp entity.InputResponse) { responses <- resp })
		return <-responses
	}
	respondWith := func(raw string) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), MethodInput, req, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, _ interface{}, result interface{}) (jsonrpc2.ID, error) {
				*(result.(*json.RawMessage)) = json.RawMessage(raw)
				return jsonrpc2.NewNumberID(1), nil
			})
	}

	t.Run("value", func(t *testing.T) {
		respondWith(`{"value":" /srv/env ","cancelled":false}`)
		assert.Equal(t, entity.InputResponse{Value: "/srv/env"}, input())
	})
	t.Run("cancelled", func(t *testing.T) {
		respondWith(`{"value":"","cancelled":true}`)
		assert.True(t, input().Cancelled)
	})
	t.Run("null", func(t *testing.T) {
		respondWith(`null`)
		assert.True(t, input().Cancelled)
	})
	t.Run("blank value", func(t *testing.T) {
		respondWith(`{"value":"   "}`)
		assert.True(t, input().Cancelled)
	})
	t.Run("malformed", func(t *testing.T) {
		respondWith(`[1]`)
		assert.True(t, input().Cancelled)
	})
	t.Run("method not found", func(t *testing.T) {
		mockConn.EXPECT().Call(gomock.Eq(ctx), MethodInput, req, gomock.Any()).Return(jsonrpc2.NewNumberID(1), jsonrpc2.ErrMethodNotFound)
		assert.True(t, input().Cancelled)
	})
}

func TestGetLogMessageWriter(t *testing.T) {
	g, mockConn, _, ctx := getTestGateway(t)

	t.Run("success", func(t *testing.T) {
		w, err := g.GetLogMessageWriter(ctx, "remote")
		require.NoError(t, err)
		mockConn.EXPECT().Notify(gomock.Eq(ctx), protocol.MethodWindowLogMessage, &protocol.LogMessageParams{
			Message: "[remote] install failed",
			Type:    protocol.MessageTypeLog,
		}).Return(nil)
		n, err := w.Write([]byte("install failed\n"))
		require.NoError(t, err)
		assert.Equal(t, 15, n)
	})
	t.Run("write failure", func(t *testing.T) {
		w, err := g.GetLogMessageWriter(ctx, "remote")
		require.NoError(t, err)
		mockConn.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("closed"))
		_, err = w.Write([]byte("x"))
		assert.Error(t, err)
	})
	t.Run("invalid context", func(t *testing.T) {
		_, err := g.GetLogMessageWriter(context.Background(), "remote")
		assert.Error(t, err)
	})
}
