// Package supportapi is the HTTP client for the support backend. It
// implements supportchat.API on top of pkg/httpclient.
package supportapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/richxcame/support-chat/internal/supportchat"
	"github.com/richxcame/support-chat/pkg/common"
	"github.com/richxcame/support-chat/pkg/config"
	"github.com/richxcame/support-chat/pkg/httpclient"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/resilience"
	"github.com/richxcame/support-chat/pkg/security"
	"github.com/richxcame/support-chat/pkg/validation"
	"go.uber.org/zap"
)

const breakerName = "support-api"

var errMissingUpload = errors.New("upload has no content")

// APIError is a failure reported by the backend in the response envelope
type APIError struct {
	Op string
	*common.AppError
}

func (e *APIError) Error() string {
	return e.Op + ": " + e.AppError.Error()
}

// Unwrap exposes the envelope error and, through it, the status sentinel
func (e *APIError) Unwrap() error {
	return e.AppError
}

// Client is a support REST API client
type Client struct {
	http   *httpclient.Client
	logger *zap.Logger
}

var _ supportchat.API = (*Client)(nil)

// New wraps an existing HTTP client
func New(http *httpclient.Client, log *zap.Logger) *Client {
	if log == nil {
		log = logger.Named("supportapi")
	}
	return &Client{http: http, logger: log}
}

// NewFromConfig builds the HTTP stack from configuration: bearer auth,
// retries and, when enabled, a circuit breaker around every request.
func NewFromConfig(cfg *config.Config, tokens httpclient.TokenSource) *Client {
	opts := []httpclient.Option{
		httpclient.WithDefaultRetry(),
		httpclient.WithUserAgent(cfg.App.ServiceName),
	}
	if tokens != nil {
		opts = append(opts, httpclient.WithTokenSource(tokens))
	}

	if cfg.Resilience.CircuitBreaker.Enabled {
		settings := cfg.Resilience.CircuitBreaker.SettingsFor(breakerName)
		breaker := resilience.NewCircuitBreaker(resilience.Settings{
			Name:             breakerName,
			Interval:         time.Duration(settings.IntervalSeconds) * time.Second,
			Timeout:          time.Duration(settings.TimeoutSeconds) * time.Second,
			FailureThreshold: uint32(settings.FailureThreshold),
			SuccessThreshold: uint32(settings.SuccessThreshold),
			IsSuccessful: func(err error) bool {
				return err == nil || httpclient.IsClientError(err)
			},
		}, nil)
		opts = append(opts, httpclient.WithCircuitBreaker(breaker))
	}

	return New(httpclient.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), opts...), logger.Named("supportapi"))
}

// ========================================
// TICKETS
// ========================================

// CreateTicket opens a new ticket
func (c *Client) CreateTicket(ctx context.Context, req supportchat.CreateTicketRequest) (*supportchat.Ticket, error) {
	const op = "create ticket"
	if err := validation.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ticket supportchat.Ticket
	if err := c.post(ctx, op, "/support/tickets", req, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicket fetches a ticket
func (c *Client) GetTicket(ctx context.Context, ticketID string) (*supportchat.Ticket, error) {
	var ticket supportchat.Ticket
	if err := c.get(ctx, "get ticket", ticketPath(ticketID), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketHistory lists the user's tickets, newest first
func (c *Client) GetTicketHistory(ctx context.Context, page, pageSize int) ([]supportchat.Ticket, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var tickets []supportchat.Ticket
	if err := c.get(ctx, "list tickets", "/support/tickets?"+query.Encode(), &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// CloseTicket closes a ticket, optionally emailing a transcript
func (c *Client) CloseTicket(ctx context.Context, ticketID string, requestTranscript bool) error {
	body := map[string]bool{"request_transcript": requestTranscript}
	return c.post(ctx, "close ticket", ticketPath(ticketID, "close"), body, nil)
}

// ReopenTicket reopens a closed ticket
func (c *Client) ReopenTicket(ctx context.Context, ticketID string) (*supportchat.Ticket, error) {
	var ticket supportchat.Ticket
	if err := c.post(ctx, "reopen ticket", ticketPath(ticketID, "reopen"), nil, &ticket); err != nil {
		return nil, err
	}
	if ticket.ID == "" {
		return nil, nil
	}
	return &ticket, nil
}

// ========================================
// MESSAGES
// ========================================

// SendMessage posts a message. The client id is sent as the idempotency
// key so a resend after a lost response is not stored twice.
func (c *Client) SendMessage(ctx context.Context, req supportchat.SendMessageRequest) (*supportchat.ChatMessage, error) {
	const op = "send message"
	if err := validation.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	path := ticketPath(req.TicketID, "messages")
	var (
		body []byte
		err  error
	)
	if req.ClientID != "" {
		body, err = c.http.PostWithIdempotency(ctx, path, req, nil, req.ClientID)
	} else {
		body, err = c.http.Post(ctx, path, req, nil)
	}
	if err != nil {
		return nil, c.wrap(ctx, op, err)
	}

	var msg supportchat.ChatMessage
	if _, err := common.DecodeResponse(body, &msg); err != nil {
		return nil, c.wrap(ctx, op, err)
	}
	return &msg, nil
}

// GetMessages lists a ticket's messages in order
func (c *Client) GetMessages(ctx context.Context, ticketID string) ([]supportchat.ChatMessage, error) {
	var messages []supportchat.ChatMessage
	if err := c.get(ctx, "get messages", ticketPath(ticketID, "messages"), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteMessage removes a message
func (c *Client) DeleteMessage(ctx context.Context, ticketID, messageID string) error {
	const op = "delete message"
	if _, err := c.http.Delete(ctx, ticketPath(ticketID, "messages", messageID), nil); err != nil {
		return c.wrap(ctx, op, err)
	}
	return nil
}

// MarkAsRead marks messages read
func (c *Client) MarkAsRead(ctx context.Context, ticketID string, messageIDs []string) error {
	body := map[string][]string{"message_ids": messageIDs}
	return c.post(ctx, "mark read", ticketPath(ticketID, "messages", "read"), body, nil)
}

// UploadAttachment uploads a file as multipart form data
func (c *Client) UploadAttachment(ctx context.Context, ticketID string, upload supportchat.Upload) (*supportchat.Attachment, error) {
	const op = "upload attachment"
	if upload.Content == nil {
		return nil, fmt.Errorf("%s: %w", op, errMissingUpload)
	}

	fields := map[string]string{}
	if upload.MimeType != "" {
		fields["mime_type"] = upload.MimeType
	}
	body, err := c.http.Upload(ctx, ticketPath(ticketID, "attachments"), "file", security.SanitizeFilename(upload.Filename), upload.Content, fields)
	if err != nil {
		return nil, c.wrap(ctx, op, err)
	}

	var attachment supportchat.Attachment
	if _, err := common.DecodeResponse(body, &attachment); err != nil {
		return nil, c.wrap(ctx, op, err)
	}
	return &attachment, nil
}

// ========================================
// FAQ
// ========================================

// SearchFAQ finds help articles matching query
func (c *Client) SearchFAQ(ctx context.Context, query string) ([]supportchat.FAQSuggestion, error) {
	const op = "search faq"
	query = security.NormalizeWhitespace(query)
	if err := validation.ValidateStringLength(query, 1, 200); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var results []supportchat.FAQSuggestion
	if err := c.get(ctx, op, "/support/faq/search?q="+url.QueryEscape(query), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// MarkFAQHelpful records whether an article helped
func (c *Client) MarkFAQHelpful(ctx context.Context, faqID string, helpful bool) error {
	path := "/support/faq/" + url.PathEscape(faqID) + "/feedback"
	return c.post(ctx, "faq feedback", path, map[string]bool{"helpful": helpful}, nil)
}

// ========================================
// AGENTS AND CALLS
// ========================================

// RequestCall asks for a call about a ticket
func (c *Client) RequestCall(ctx context.Context, ticketID string) (*supportchat.CallRequest, error) {
	var call supportchat.CallRequest
	if err := c.post(ctx, "request call", ticketPath(ticketID, "calls"), nil, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// AcceptCall accepts a call offer
func (c *Client) AcceptCall(ctx context.Context, callID string) error {
	return c.post(ctx, "accept call", "/support/calls/"+url.PathEscape(callID)+"/accept", nil, nil)
}

// RejectCall declines a call offer
func (c *Client) RejectCall(ctx context.Context, callID string) error {
	return c.post(ctx, "reject call", "/support/calls/"+url.PathEscape(callID)+"/reject", nil, nil)
}

// RequestAgent asks for a human agent and returns the queue position
func (c *Client) RequestAgent(ctx context.Context, ticketID string) (*supportchat.QueueInfo, error) {
	var queue supportchat.QueueInfo
	if err := c.post(ctx, "request agent", ticketPath(ticketID, "agent"), nil, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// TransferToAgent hands a ticket to another agent or department
func (c *Client) TransferToAgent(ctx context.Context, ticketID string, req supportchat.TransferRequest) error {
	const op = "transfer ticket"
	if err := validation.ValidateStruct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.post(ctx, op, ticketPath(ticketID, "transfer"), req, nil)
}

// RateConversation rates a finished ticket
func (c *Client) RateConversation(ctx context.Context, ticketID string, req supportchat.RatingRequest) error {
	const op = "rate conversation"
	if err := validation.ValidateStruct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.post(ctx, op, ticketPath(ticketID, "rating"), req, nil)
}

// ========================================
// HELPERS
// ========================================

func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	body, err := c.http.Get(ctx, path, nil)
	if err != nil {
		return c.wrap(ctx, op, err)
	}
	if _, err := common.DecodeResponse(body, out); err != nil {
		return c.wrap(ctx, op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out interface{}) error {
	body, err := c.http.Post(ctx, path, in, nil)
	if err != nil {
		return c.wrap(ctx, op, err)
	}
	if _, err := common.DecodeResponse(body, out); err != nil {
		return c.wrap(ctx, op, err)
	}
	return nil
}

// wrap turns transport and envelope failures into APIError where the
// backend explained the failure, and annotates everything else with op.
func (c *Client) wrap(ctx context.Context, op string, err error) error {
	var wrapped error
	var httpErr *httpclient.HTTPError
	var appErr *common.AppError

	switch {
	case errors.As(err, &httpErr):
		if decoded, ok := common.DecodeErrorBody([]byte(httpErr.Body)); ok {
			if decoded.Code == 0 {
				decoded.Code = httpErr.StatusCode
				decoded.Err = common.SentinelForStatus(httpErr.StatusCode)
			}
			wrapped = &APIError{Op: op, AppError: decoded}
		} else {
			wrapped = fmt.Errorf("%s: %w", op, err)
		}
	case errors.As(err, &appErr):
		wrapped = &APIError{Op: op, AppError: appErr}
	default:
		wrapped = fmt.Errorf("%s: %w", op, err)
	}

	logger.FromContext(ctx, c.logger).Debug("support api call failed",
		zap.String("operation", op),
		zap.Error(wrapped),
	)
	return wrapped
}

func ticketPath(ticketID string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/support/tickets/")
	b.WriteString(url.PathEscape(ticketID))
	for _, part := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(part))
	}
	return b.String()
}
