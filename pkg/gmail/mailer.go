// Package gmail delivers client update emails through the Gmail API using a
// single sender mailbox authorized by a long-lived refresh token.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Message is one outgoing email. Either body may be empty.
type Message struct {
	To        string
	ToName    string
	Subject   string
	BodyPlain string
	BodyHTML  string
}

type Mailer struct {
	srv        *gmail.Service
	sender     string
	senderName string
	now        func() time.Time
}

// loggingTokenSource logs every access-token refresh of the sender mailbox.
type loggingTokenSource struct {
	src     oauth2.TokenSource
	current string
	log     *zap.Logger
}

func (s *loggingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		s.log.Warn("Gmail token refresh failed", zap.Error(err))
		return nil, err
	}
	if t.AccessToken != s.current {
		s.current = t.AccessToken
		s.log.Debug("Gmail access token refreshed", zap.Time("expiry", t.Expiry))
	}
	return t, nil
}

// NewMailer authorizes the sender mailbox with its refresh token.
func NewMailer(ctx context.Context, clientID, clientSecret, refreshToken, sender, senderName string, log *zap.Logger) (*Mailer, error) {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	src := &loggingTokenSource{
		src: oauth2.ReuseTokenSource(nil, config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})),
		log: log,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewMailerWithService(srv, sender, senderName), nil
}

// NewMailerWithService wraps an already configured Gmail service.
func NewMailerWithService(srv *gmail.Service, sender, senderName string) *Mailer {
	return &Mailer{
		srv:        srv,
		sender:     sender,
		senderName: senderName,
		now:        time.Now,
	}
}

// Send builds a multipart/alternative message and sends it as the sender.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	raw, err := m.build(msg)
	if err != nil {
		return err
	}
	_, err = m.srv.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	return nil
}

func (m *Mailer) build(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{{Name: m.senderName, Address: m.sender}})
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	parts := []struct{ contentType, body string }{
		{"text/plain", msg.BodyPlain},
		{"text/html", msg.BodyHTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(pw, p.body); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
