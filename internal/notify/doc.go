// Package notify sends solve outcomes to chat and mail.
//
// Sinks are independent: Slack and Discord incoming webhooks, and SMTP with
// implicit TLS. Fanout delivers one Message to every configured sink at the
// same time and returns the failures combined; a dead webhook never keeps
// the mail from going out.
//
// Notifications are sent by the caller after a solve returns, never from
// inside the logger.
package notify
