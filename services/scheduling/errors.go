package scheduling

import "fmt"

type ScheduleError struct {
	Code    string
	Message string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewSessionNotFoundError(sessionID string) error {
	return &ScheduleError{
		Code:    "sessionNotFound",
		Message: fmt.Sprintf("scheduling session %s not found or expired", sessionID),
	}
}

func NewInvalidEditError(msg string) error {
	return &ScheduleError{
		Code:    "invalidEdit",
		Message: msg,
	}
}
