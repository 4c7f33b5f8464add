// Package notifier delivers alert text to a single chat destination.
//
// # Transport
//
// Telegram is the only chat system: the bot logs in once (getMe) when the
// notifier is created and keeps that session for the process lifetime. The
// destination is a numeric chat ID or an "@channel" username, resolved on first
// use and cached once it is known to accept text from the bot.
//
// # Failure policy
//
// Notify returns errors instead of retrying. Callers log them; the next check
// cycle is the retry. Typed errors (ErrDestinationUnresolvable,
// ErrNotTextCapable) let callers tell configuration problems from transient
// delivery failures.
//
// LogOnly is used when no bot token is configured: alerts go to the log.
package notifier
