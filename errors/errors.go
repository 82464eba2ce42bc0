package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrUnauthorized         = fmt.Errorf("unauthorized")
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrValidation           = fmt.Errorf("validation failed")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrParticipantNotFound  = fmt.Errorf("participant not found")
	ErrPersistence          = fmt.Errorf("persistence failed")
	ErrStorageConflict      = fmt.Errorf("storage conflict")
	ErrConnectionClosed     = fmt.Errorf("connection closed")
	ErrBufferFull           = fmt.Errorf("send buffer full")
	ErrUnknownEvent         = fmt.Errorf("unknown event")
	ErrSearchDisabled       = fmt.Errorf("search is disabled")
)

// ToWireMessage turns an error into the human readable message sent
// in room:error and chat:error events. Storage internals never leak,
// anything unclassified becomes fallback.
func ToWireMessage(err error, fallback string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return "Unauthorized"
	case errors.Is(err, ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, ErrMessageNotFound):
		return "Message not found"
	case errors.Is(err, ErrParticipantNotFound):
		return "Participant not found"
	case errors.Is(err, ErrValidation):
		return "Invalid payload"
	case errors.Is(err, ErrSearchDisabled):
		return "Search is not available"
	default:
		return fallback
	}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
