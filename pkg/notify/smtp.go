package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
)

// SMTPConfig configures the SMTP notifier
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// sendMailFunc matches smtp.SendMail
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends invitation emails through an SMTP relay
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPNotifier creates an SMTP notifier. Port defaults to 587.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

// Name implements Notifier
func (n *SMTPNotifier) Name() string { return "smtp" }

// NotifyInvitation implements Notifier
func (n *SMTPNotifier) NotifyInvitation(ctx context.Context, inv *Invitation) error {
	msg, err := RenderInvitation(inv)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := buildMIME(n.cfg.From, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)
	if err := n.sendMail(addr, auth, n.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMIME renders msg as a multipart/alternative email with text and HTML parts
func buildMIME(from string, msg *Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to create mime part: %w", err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("failed to write mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close mime writer: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "Subject: %s\r\n", msg.Subject)
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
