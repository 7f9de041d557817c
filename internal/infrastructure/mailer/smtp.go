package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wneessen/go-mail"

	"DailyBriefing/internal/config"
	"DailyBriefing/internal/ports"
	"DailyBriefing/pkg/logger"
)

var errNoRecipient = errors.New("empty recipient")

// SMTPMailer delivers documents as attachments over STARTTLS with PLAIN auth.
type SMTPMailer struct {
	smtp    config.SMTPConfig
	subject string
	logger  *slog.Logger
	debug   bool
	clock   func() time.Time
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from the sender settings. The subject is
// optional; Kindle ignores it for personal documents.
func NewSMTPMailer(smtp config.SMTPConfig, delivery config.DeliveryConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{
		smtp:    smtp,
		subject: delivery.Subject,
		logger:  logger.With("component", "mailer"),
		debug:   logger.Enabled(context.Background(), slog.LevelDebug),
		clock:   time.Now,
	}
}

// Send attaches the file at attachmentPath and sends it to the recipient.
func (m *SMTPMailer) Send(ctx context.Context, attachmentPath, to string) error {
	msg, err := m.buildMessage(attachmentPath, to)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.smtp.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	m.logger.Info("sending document", "file", filepath.Base(attachmentPath), "to", to)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Info("document sent", "file", filepath.Base(attachmentPath), "to", to)

	return nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.smtp.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.smtp.Username),
		mail.WithPassword(m.smtp.Password),
	}
	if m.smtp.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.smtp.Timeout))
	}
	if m.debug {
		opts = append(opts, mail.WithLogger(logger.NewSMTP(m.logger, "smtp")), mail.WithDebugLog())
	}
	return opts
}

func (m *SMTPMailer) buildMessage(attachmentPath, to string) (*mail.Msg, error) {
	if to == "" {
		return nil, errNoRecipient
	}

	file, err := os.Open(attachmentPath)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer file.Close()

	msg := mail.NewMsg()
	if err := msg.From(m.sender()); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	msg.Subject(m.subject)
	msg.SetDateWithValue(m.clock())
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, "")

	name := filepath.Base(attachmentPath)
	if err := msg.AttachReader(name, file,
		mail.WithFileName(name),
		mail.WithFileEncoding(mail.EncodingB64),
		mail.WithFileContentType(mail.TypeAppOctetStream),
	); err != nil {
		return nil, fmt.Errorf("attach %s: %w", name, err)
	}

	return msg, nil
}

func (m *SMTPMailer) sender() string {
	if m.smtp.From != "" {
		return m.smtp.From
	}
	return m.smtp.Username
}
