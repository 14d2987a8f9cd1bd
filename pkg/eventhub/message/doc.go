// Package message provides the fullscreen message extension.
//
// The extension keeps at most one message on screen at a time. A Monitor
// tracks whether one is displayed, a Presenter renders it and a Delegate
// is told about the message's lifecycle. Requests and interactions arrive
// as ordinary hub events:
//
//	TypeMessage / event.SourceRequestContent  show a message, answered with {"shown": bool}
//	TypeMessage / SourceInteraction           a positive, negative or url action
//	TypeMessage / SourceDismiss               the message was closed
package message
