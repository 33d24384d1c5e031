package gfx

import "errors"

var (
	ErrStaticBuffer   = errors.New("static buffer cannot be modified after creation")
	ErrNoPipeline     = errors.New("no pipeline bound")
	ErrNoRenderPass   = errors.New("no render pass open")
	ErrLayoutMismatch = errors.New("resource set does not match pipeline layout")
	ErrInvalidState   = errors.New("invalid command list state")
	ErrReleased       = errors.New("resource already released")
	ErrFenceTimeout   = errors.New("fence wait timed out")
	ErrDeviceLost     = errors.New("device lost")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnsupported    = errors.New("not supported by backend")
)

// ConfigurationError reports an invalid description or enum value. It is
// returned by the call that received the value.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string { return "gfx: " + e.Op + ": invalid configuration: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResourceMisuseError reports a programming error in the caller, such as
// writing a static buffer or drawing without a pipeline.
type ResourceMisuseError struct {
	Op  string
	Err error
}

func (e *ResourceMisuseError) Error() string { return "gfx: " + e.Op + ": " + e.Err.Error() }
func (e *ResourceMisuseError) Unwrap() error { return e.Err }

// BackendFatalError reports an unrecoverable native failure. The device that
// produced it is unusable afterwards.
type BackendFatalError struct {
	Op  string
	Err error
}

func (e *BackendFatalError) Error() string { return "gfx: " + e.Op + ": fatal: " + e.Err.Error() }
func (e *BackendFatalError) Unwrap() error { return e.Err }

func configErr(op string, err error) error { return &ConfigurationError{Op: op, Err: err} }
func misuseErr(op string, err error) error { return &ResourceMisuseError{Op: op, Err: err} }

// IsFatal reports whether err is or wraps a BackendFatalError.
func IsFatal(err error) bool {
	var fe *BackendFatalError
	return errors.As(err, &fe)
}
