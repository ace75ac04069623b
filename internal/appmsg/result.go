package appmsg

import "fmt"

// Result is the reason code attached to a failed send or a dropped message
type Result uint16

const (
	ResultOK             Result = 0
	ResultSendTimeout    Result = 1 << 1
	ResultSendRejected   Result = 1 << 2
	ResultNotConnected   Result = 1 << 3
	ResultAppNotRunning  Result = 1 << 4
	ResultInvalidArgs    Result = 1 << 5
	ResultBusy           Result = 1 << 6
	ResultBufferOverflow Result = 1 << 7
	ResultClosed         Result = 1 << 13
	ResultInternalError  Result = 1 << 14
)

var resultNames = map[Result]string{
	ResultOK:             "OK",
	ResultSendTimeout:    "SEND_TIMEOUT",
	ResultSendRejected:   "SEND_REJECTED",
	ResultNotConnected:   "NOT_CONNECTED",
	ResultAppNotRunning:  "APP_NOT_RUNNING",
	ResultInvalidArgs:    "INVALID_ARGS",
	ResultBusy:           "BUSY",
	ResultBufferOverflow: "BUFFER_OVERFLOW",
	ResultClosed:         "CLOSED",
	ResultInternalError:  "INTERNAL_ERROR",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RESULT(%d)", uint16(r))
}

// SendError is a transport failure carrying its reason code
type SendError struct {
	Reason Result
	Err    error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
