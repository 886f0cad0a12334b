package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// DefaultInviterName is shown when the inviter has no display name
const DefaultInviterName = "A workspace admin"

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

const invitationHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Workspace Invitation</h2>
  <p>Hello,</p>
  <p>{{.InviterName}} has invited you to join the <strong>{{.WorkspaceName}}</strong> workspace as a <strong>{{.Role}}</strong>.</p>
  <p>Click the button below to accept this invitation:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.InviteURL}}" style="background-color: #4CAF50; color: white; padding: 12px 20px; text-decoration: none; border-radius: 4px; font-weight: bold;">Accept Invitation</a>
  </div>
  <p>If the button doesn't work, you can copy and paste this link into your browser:</p>
  <p style="word-break: break-all;">{{.InviteURL}}</p>
  <p>If you don't have an account yet, you'll be prompted to create one when you accept the invitation.</p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #777; font-size: 12px;">This invitation will expire in 7 days. If you didn't expect this invitation, you can safely ignore this email.</p>
</div>
`

const invitationText = `Workspace Invitation

Hello,

{{.InviterName}} has invited you to join the "{{.WorkspaceName}}" workspace as a {{.Role}}.

Accept the invitation by visiting this link:
{{.InviteURL}}

If you don't have an account yet, you'll be prompted to create one when you accept the invitation.

This invitation will expire in 7 days. If you didn't expect this invitation, you can safely ignore this email.
`

var (
	invitationHTMLTmpl = htmltemplate.Must(htmltemplate.New("invitation.html").Parse(invitationHTML))
	invitationTextTmpl = texttemplate.Must(texttemplate.New("invitation.txt").Parse(invitationText))
)

// RenderInvitation renders the invitation email for inv
func RenderInvitation(inv *Invitation) (*Message, error) {
	if inv == nil || inv.Email == "" {
		return nil, fmt.Errorf("invitation recipient is required")
	}

	data := *inv
	if data.InviterName == "" {
		data.InviterName = DefaultInviterName
	}

	var html, text bytes.Buffer
	if err := invitationHTMLTmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render invitation html: %w", err)
	}
	if err := invitationTextTmpl.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render invitation text: %w", err)
	}

	return &Message{
		To:      inv.Email,
		Subject: fmt.Sprintf("Invitation to join %s workspace", inv.WorkspaceName),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
