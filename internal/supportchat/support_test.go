package supportchat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richxcame/support-chat/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ─── FAQ ─────────────────────────────────────────────────────────────────────

func TestSearchFAQ(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ctrl.Start(ctx)

	refunds := []FAQSuggestion{{ID: "f1", Question: "How do refunds work?"}}
	h.api.On("SearchFAQ", mock.Anything, "refund").Return(refunds, nil).Once()

	results := h.ctrl.SearchFAQ(ctx, "refund")
	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)
	assert.Equal(t, refunds, h.ctrl.State().FAQSuggestions)

	h.api.On("SearchFAQ", mock.Anything, "chargeback").Return(nil, errors.New("503 service unavailable")).Once()

	assert.Nil(t, h.ctrl.SearchFAQ(ctx, "chargeback"))
	st := h.ctrl.State()
	assert.Equal(t, refunds, st.FAQSuggestions)
	require.NotNil(t, st.LastError)
	assert.Equal(t, opSearchFAQ, st.LastError.Operation)
	assert.Empty(t, st.MessageError)
	h.api.AssertExpectations(t)
}

func TestMarkFAQHelpful(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ctrl.Start(ctx)

	h.api.On("MarkFAQHelpful", mock.Anything, "f1", true).Return(nil).Once()
	assert.True(t, h.ctrl.MarkFAQHelpful(ctx, "f1", true))
	assert.Nil(t, h.ctrl.State().LastError)

	h.api.On("MarkFAQHelpful", mock.Anything, "f2", false).Return(errors.New("404 not found")).Once()
	assert.False(t, h.ctrl.MarkFAQHelpful(ctx, "f2", false))
	require.NotNil(t, h.ctrl.State().LastError)
	assert.Equal(t, opFAQFeedback, h.ctrl.State().LastError.Operation)
	h.api.AssertExpectations(t)
}

// ─── messages ────────────────────────────────────────────────────────────────

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openTicket(t)
	h.ch.deliver(envelope(t, EventTypeMessageReceived, "t1", 0, agentMessage("a-1", "first")))
	h.ch.deliver(envelope(t, EventTypeMessageReceived, "t1", 0, agentMessage("a-2", "second")))

	h.api.On("DeleteMessage", mock.Anything, "t1", "a-1").Return(nil).Once()
	require.True(t, h.ctrl.DeleteMessage(ctx, "a-1"))
	assert.Equal(t, []string{"a-2"}, messageIDs(h.ctrl.State().Messages))

	require.Eventually(t, func() bool {
		var cached Ticket
		err := kvstore.GetJSON(ctx, h.store, kvstore.Keys{}.CurrentTicket(), &cached)
		return err == nil && len(cached.Messages) == 1 && cached.Messages[0].ID == "a-2"
	}, time.Second, 10*time.Millisecond)

	h.api.On("DeleteMessage", mock.Anything, "t1", "a-2").Return(errors.New("403 forbidden")).Once()
	assert.False(t, h.ctrl.DeleteMessage(ctx, "a-2"))
	st := h.ctrl.State()
	assert.Equal(t, []string{"a-2"}, messageIDs(st.Messages))
	assert.Equal(t, "Failed to delete message", st.MessageError)
	h.api.AssertExpectations(t)
}

func TestDeleteMessage_TemporaryIsRemovedLocally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openTicket(t)

	h.api.On("SendMessage", mock.Anything, withContent("never mind")).
		Run(func(mock.Arguments) {
			pending := h.ctrl.State().Messages
			require.Len(t, pending, 1)
			require.True(t, IsTemporaryID(pending[0].ID))

			assert.True(t, h.ctrl.DeleteMessage(ctx, pending[0].ID))
			assert.Empty(t, h.ctrl.State().Messages)
		}).
		Return(nil, errors.New("gateway timeout")).Once()

	assert.False(t, h.ctrl.SendMessage(ctx, "never mind"))
	assert.Empty(t, h.ctrl.State().Messages)
	h.api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadAttachment_StagesForNextMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ctrl.Start(ctx)

	assert.Nil(t, h.ctrl.UploadAttachment(ctx, Upload{Filename: "receipt.png"}), "no ticket")

	require.True(t, h.ctrl.Connect(ctx))
	h.api.On("CreateTicket", mock.Anything, mock.Anything).Return(&Ticket{ID: "t1", Status: TicketStatusOpen}, nil).Once()
	require.NotNil(t, h.ctrl.CreateTicket(ctx, CreateTicketRequest{Subject: "Refund"}))

	receipt := &Attachment{ID: "f1", Name: "receipt.png", MimeType: "image/png"}
	h.api.On("UploadAttachment", mock.Anything, "t1", mock.MatchedBy(func(u Upload) bool {
		return u.Filename == "receipt.png"
	})).Return(receipt, nil).Once()

	uploaded := h.ctrl.UploadAttachment(ctx, Upload{Filename: "receipt.png", MimeType: "image/png", Content: strings.NewReader("png")})
	require.NotNil(t, uploaded)
	assert.Equal(t, "f1", uploaded.ID)
	st := h.ctrl.State()
	assert.Equal(t, []Attachment{*receipt}, st.Attachments)
	assert.Empty(t, st.Messages)
	h.api.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)

	h.api.On("UploadAttachment", mock.Anything, "t1", mock.Anything).Return(nil, errors.New("413 too large")).Once()
	assert.Nil(t, h.ctrl.UploadAttachment(ctx, Upload{Filename: "video.mp4", Content: strings.NewReader("mp4")}))
	st = h.ctrl.State()
	assert.Len(t, st.Attachments, 1)
	assert.Equal(t, "Failed to upload attachment", st.MessageError)
	h.api.AssertExpectations(t)
}

// ─── agents and calls ────────────────────────────────────────────────────────

func TestRequestAgent_QueueShownOnlyWhileUnassigned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openTicket(t)

	h.api.On("RequestAgent", mock.Anything, "t1").Return(&QueueInfo{Position: 4, EstimatedWait: time.Minute}, nil).Once()
	require.True(t, h.ctrl.RequestAgent(ctx))
	require.NotNil(t, h.ctrl.State().QueueInfo)
	assert.Equal(t, 4, h.ctrl.State().QueueInfo.Position)

	h.ch.deliver(envelope(t, EventTypeAgentAssigned, "t1", 0, SupportAgent{ID: "a1", Name: "Asha"}))
	require.Nil(t, h.ctrl.State().QueueInfo)

	h.api.On("RequestAgent", mock.Anything, "t1").Return(&QueueInfo{Position: 2}, nil).Once()
	require.True(t, h.ctrl.RequestAgent(ctx))
	assert.Nil(t, h.ctrl.State().QueueInfo)

	h.api.On("RequestAgent", mock.Anything, "t1").Return(nil, errors.New("no agents online")).Once()
	assert.False(t, h.ctrl.RequestAgent(ctx))
	require.NotNil(t, h.ctrl.State().LastError)
	assert.Equal(t, opRequestAgent, h.ctrl.State().LastError.Operation)
	h.api.AssertExpectations(t)
}

func TestTransferToAgent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ctrl.Start(ctx)

	billing := TransferRequest{Department: "billing", Reason: "refund over limit"}
	assert.False(t, h.ctrl.TransferToAgent(ctx, billing), "no ticket")

	require.True(t, h.ctrl.Connect(ctx))
	h.api.On("CreateTicket", mock.Anything, mock.Anything).Return(&Ticket{ID: "t1", Status: TicketStatusOpen}, nil).Once()
	require.NotNil(t, h.ctrl.CreateTicket(ctx, CreateTicketRequest{Subject: "Refund"}))

	h.api.On("TransferToAgent", mock.Anything, "t1", billing).Return(nil).Once()
	assert.True(t, h.ctrl.TransferToAgent(ctx, billing))

	h.api.On("TransferToAgent", mock.Anything, "t1", billing).Return(errors.New("department closed")).Once()
	assert.False(t, h.ctrl.TransferToAgent(ctx, billing))
	require.NotNil(t, h.ctrl.State().LastError)
	assert.Equal(t, opTransfer, h.ctrl.State().LastError.Operation)
	h.api.AssertExpectations(t)
}

func TestRequestCall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openTicket(t)

	h.api.On("RequestCall", mock.Anything, "t1").Return(&CallRequest{ID: "c1", TicketID: "t1"}, nil).Once()
	call := h.ctrl.RequestCall(ctx)
	require.NotNil(t, call)
	assert.Equal(t, "c1", call.ID)

	h.api.On("RequestCall", mock.Anything, "t1").Return(nil, nil).Once()
	assert.Nil(t, h.ctrl.RequestCall(ctx))

	h.api.On("RequestCall", mock.Anything, "t1").Return(nil, errors.New("no agents online")).Once()
	assert.Nil(t, h.ctrl.RequestCall(ctx))
	require.NotNil(t, h.ctrl.State().LastError)
	assert.Equal(t, opRequestCall, h.ctrl.State().LastError.Operation)
	assert.Equal(t, "no agents online", h.ctrl.State().LastError.Message)
	h.api.AssertExpectations(t)
}

func TestRejectCall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.openTicket(t)
	h.ch.deliver(envelope(t, EventTypeCallRequested, "t1", 0, CallRequest{ID: "c1", AgentName: "Asha"}))

	h.api.On("RejectCall", mock.Anything, "c1").Return(errors.New("call expired")).Once()
	assert.False(t, h.ctrl.RejectCall(ctx, "c1"))
	st := h.ctrl.State()
	require.NotNil(t, st.IncomingCall)
	require.NotNil(t, st.LastError)
	assert.Equal(t, opRejectCall, st.LastError.Operation)

	h.api.On("RejectCall", mock.Anything, "c1").Return(nil).Once()
	assert.True(t, h.ctrl.RejectCall(ctx, "c1"))
	assert.Nil(t, h.ctrl.State().IncomingCall)
	h.api.AssertExpectations(t)
}
