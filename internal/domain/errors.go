package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

var (
	// ErrInvalidSnapshot is returned when a depth update cannot be turned
	// into a valid snapshot. The message is dropped; the loop continues.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidParameter is returned for model configuration defects.
	// Never retriable; the process fails at startup.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrProtocolFailure is returned when consecutive protocol-level errors
	// exceed the configured threshold. Requires external restart.
	ErrProtocolFailure = errors.New("protocol failure")

	// ErrPublishFailed is returned when staging or replacing the artifact
	// fails. The previously published artifact stays intact.
	ErrPublishFailed = errors.New("publish failed")
)

// TransportError represents a transport-level error that may be retriable
type TransportError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "subscribe")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

// NewFatalTransportError creates a non-retriable transport error
func NewFatalTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: false}
}

// ProtocolError is returned when an endpoint keeps sending garbage past the
// configured threshold. Never retriable.
type ProtocolError struct {
	Endpoint    string
	Consecutive int
	Err         error
}

func (e *ProtocolError) Error() string {
	return "protocol failure on " + e.Endpoint + ": " + e.Err.Error()
}

func (e *ProtocolError) IsRetriable() bool {
	return false
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolFailure
}

// Snapshot rejection reasons.
const (
	ReasonEmptySide   = "empty side"
	ReasonNonPositive = "non-positive level"
	ReasonBidOrdering = "bids not strictly decreasing"
	ReasonAskOrdering = "asks not strictly increasing"
	ReasonCrossed     = "crossed book"
	ReasonStale       = "stale sequence"
)

// SnapshotError reports why a depth update was rejected by the validator.
type SnapshotError struct {
	Reason string
}

func (e *SnapshotError) Error() string {
	return "invalid snapshot: " + e.Reason
}

func (e *SnapshotError) IsRetriable() bool {
	return false
}

func (e *SnapshotError) Is(target error) bool {
	return target == ErrInvalidSnapshot
}

// ParameterError reports a model configuration defect. Fails startup.
type ParameterError struct {
	Name   string
	Reason string
}

func (e *ParameterError) Error() string {
	return "invalid parameter [" + e.Name + "]: " + e.Reason
}

func (e *ParameterError) IsRetriable() bool {
	return false
}

func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PublishError represents a failed artifact publish. Retriable on the next
// publish cycle; the rename either fully succeeds or leaves the previous
// artifact untouched.
type PublishError struct {
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return "publish " + e.Path + ": " + e.Err.Error()
}

func (e *PublishError) IsRetriable() bool {
	return true
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublishFailed
}
