// Package notify delivers invitation notifications.
//
// The default LogNotifier only logs the rendered email, which is enough for
// local development. SMTPNotifier sends a multipart text+HTML email and
// WebhookNotifier posts a signed JSON event:
//
//	X-Inkwell-Event: invitation.sent
//	X-Inkwell-Signature: sha256=<hex hmac of body>
//
// Callers treat delivery failures as non-fatal.
package notify
