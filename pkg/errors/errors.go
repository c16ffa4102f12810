package errors

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code uint16
	Name string
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Unwrap() error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	fields := log.Fields{
		"name": e.code.Name,
		"code": e.code.Code,
	}
	for k, v := range e.Metadata() {
		fields[k] = v
	}
	return log.WithFields(fields).WithError(e.cause)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

// ChannelMetadata identifies the channel and the step of its reconciliation
// that failed.
type ChannelMetadata struct {
	ChanId       uint64 `json:"chan_id,string"`
	ChannelPoint string `json:"channel_point"`
	Operation    string `json:"operation"`
}

type SweepMetadata struct {
	SweepId string `json:"sweep_id"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR"}
var LIST_CHANNELS_FAILED = Code[SweepMetadata]{1, "LIST_CHANNELS_FAILED"}
var INVALID_CHANNEL_POINT = Code[ChannelMetadata]{2, "INVALID_CHANNEL_POINT"}
var POLICY_FETCH_FAILED = Code[ChannelMetadata]{3, "POLICY_FETCH_FAILED"}
var POLICY_NOT_FOUND = Code[ChannelMetadata]{4, "POLICY_NOT_FOUND"}
var POLICY_UPDATE_FAILED = Code[ChannelMetadata]{5, "POLICY_UPDATE_FAILED"}
