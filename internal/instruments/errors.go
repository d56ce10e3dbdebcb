package instruments

import "errors"

var (
	ErrInstrumentExists = errors.New("instrument already exists")
	ErrInstrumentNil    = errors.New("instrument is nil")
	ErrInvalidMetadata  = errors.New("invalid instrument metadata")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMalformedReply   = errors.New("malformed device reply")
	ErrCommandFailed    = errors.New("device command failed")
)
