package errors

import "fmt"

var (
	ErrNameTaken       = fmt.Errorf("nickname already in use")
	ErrNotRegistered   = fmt.Errorf("registration not completed")
	ErrInvalidArgument = fmt.Errorf("missing or malformed argument")
	ErrUnknownCommand  = fmt.Errorf("unknown command")
	ErrTransportClosed = fmt.Errorf("transport closed")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
)
