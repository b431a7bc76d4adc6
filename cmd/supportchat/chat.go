package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/richxcame/support-chat/internal/supportchat"
	apperrors "github.com/richxcame/support-chat/pkg/errors"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/netmon"
	"github.com/richxcame/support-chat/pkg/realtime"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const chatHelp = `commands:
  /new <subject>        open a ticket
  /close                close the ticket
  /reopen               reopen a closed ticket
  /rate <1-5> [comment] rate the conversation
  /agent                ask for a human agent
  /transfer <dept>      move to another department
  /faq <query>          search help articles
  /helpful <id> yes|no  rate a help article
  /attach <path>        upload a file for the next message
  /delete <message-id>  delete a message
  /call, /accept, /reject
  /retry <id>, /discard <id>  manage queued messages
  /quit`

func newChatCmd(a *app) *cobra.Command {
	var (
		ticketID string
		subject  string
		category string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive conversation with support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), ticketID, supportchat.CreateTicketRequest{
				Subject:  subject,
				Category: category,
			})
		},
	}
	cmd.Flags().StringVar(&ticketID, "ticket", "", "resume an existing ticket")
	cmd.Flags().StringVar(&subject, "subject", "", "open a new ticket with this subject")
	cmd.Flags().StringVar(&category, "category", "", "category for a new ticket")
	return cmd
}

func (a *app) runChat(ctx context.Context, in io.Reader, out io.Writer, ticketID string, create supportchat.CreateTicketRequest) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel := realtime.NewClient(a.cfg.API.WebSocketURL,
		realtime.WithTokenSource(a.tokens),
		realtime.WithLogger(logger.Named("realtime")),
	)
	defer channel.Disconnect()

	var (
		network supportchat.NetworkMonitor = netmon.NewManual(true)
		prober  *netmon.Prober
	)
	if a.cfg.Network.ProbeURL != "" {
		prober = netmon.NewProber(a.cfg.Network.ProbeURL, a.cfg.Network.Interval(),
			time.Duration(a.cfg.Network.TimeoutSeconds)*time.Second, logger.Named("netmon"))
		network = prober
	}

	opts := append(supportchat.OptionsFromConfig(a.cfg.Chat), supportchat.WithAutoConnect(true))
	if ticketID != "" {
		opts = append(opts, supportchat.WithInitialTicket(ticketID))
	}
	ctrl := supportchat.New(supportchat.Deps{
		API:     a.api,
		Channel: channel,
		Store:   a.store,
		Network: network,
		UserID:  a.tokens.Identity().UserID,
		Keys:    a.keys(),
		Logger:  logger.Named("supportchat"),
	}, opts...)
	defer ctrl.Close()

	view := newTranscript(out)
	defer ctrl.OnChange(view.render)()

	g, gctx := errgroup.WithContext(ctx)
	if prober != nil {
		g.Go(func() error { return prober.Run(gctx) })
	}
	if addr := a.cfg.App.MetricsAddr; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr) })
	}
	g.Go(func() error {
		defer stop()

		ctrl.Start(gctx)
		if ctrl.State().CurrentTicket == nil {
			if create.Subject != "" {
				ctrl.CreateTicket(gctx, create)
			} else {
				fmt.Fprintln(out, "no open ticket, start one with /new <subject> (/help for commands)")
			}
		}

		session := &chatSession{ctrl: ctrl, out: out}
		return session.run(gctx, in)
	})

	return g.Wait()
}

// chatSession turns input lines into controller calls
type chatSession struct {
	ctrl *supportchat.Controller
	out  io.Writer
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether the session should end.
func (s *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.ctrl.SetInputText(line)
		s.ctrl.SendMessage(ctx, line, s.ctrl.State().Attachments...)
		return false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	apperrors.AddBreadcrumb("command", name, nil)

	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out, chatHelp)
	case "new":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: /new <subject>")
			return false
		}
		s.ctrl.CreateTicket(ctx, supportchat.CreateTicketRequest{Subject: arg})
	case "close":
		s.ctrl.CloseTicket(ctx)
	case "reopen":
		s.ctrl.ReopenTicket(ctx)
	case "rate":
		s.rate(ctx, arg)
	case "agent":
		s.ctrl.RequestAgent(ctx)
	case "transfer":
		s.ctrl.TransferToAgent(ctx, supportchat.TransferRequest{Department: arg})
	case "faq":
		s.ctrl.SearchFAQ(ctx, arg)
	case "helpful":
		id, answer, _ := strings.Cut(arg, " ")
		s.ctrl.MarkFAQHelpful(ctx, id, strings.EqualFold(strings.TrimSpace(answer), "yes"))
	case "attach":
		s.attach(ctx, arg)
	case "delete":
		s.ctrl.DeleteMessage(ctx, arg)
	case "call":
		if call := s.ctrl.RequestCall(ctx); call != nil {
			fmt.Fprintf(s.out, "call requested (%s)\n", call.ID)
		}
	case "accept", "reject":
		call := s.ctrl.State().IncomingCall
		if call == nil {
			fmt.Fprintln(s.out, "no incoming call")
			return false
		}
		if name == "accept" {
			s.ctrl.AcceptCall(ctx, call.ID)
		} else {
			s.ctrl.RejectCall(ctx, call.ID)
		}
	case "retry":
		s.ctrl.RetryOfflineMessage(ctx, arg)
	case "discard":
		s.ctrl.DiscardOfflineMessage(ctx, arg)
	default:
		fmt.Fprintf(s.out, "unknown command /%s (/help for commands)\n", name)
	}
	return false
}

func (s *chatSession) rate(ctx context.Context, arg string) {
	score, comment, _ := strings.Cut(arg, " ")
	rating, err := strconv.Atoi(score)
	if err != nil {
		fmt.Fprintln(s.out, "usage: /rate <1-5> [comment]")
		return
	}
	if s.ctrl.RateConversation(ctx, rating, strings.TrimSpace(comment)) {
		fmt.Fprintln(s.out, "thanks for the feedback")
	}
}

func (s *chatSession) attach(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(s.out, "cannot open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	attachment := s.ctrl.UploadAttachment(ctx, supportchat.Upload{
		Filename: filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Content:  f,
	})
	if attachment != nil {
		fmt.Fprintf(s.out, "attached %s, it will be sent with your next message\n", attachment.Name)
	}
}
