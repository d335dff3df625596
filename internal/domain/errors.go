package domain

import "errors"

// ErrKind 业务错误种类，传输层据此映射错误码
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
)

// Error 统一业务错误对象
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "domain error"
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error   { return &Error{Kind: KindValidation, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }

// Wrap 包住底层错误，保留原因链
func Wrap(msg string, err error) error { return &Error{Kind: KindUnknown, Msg: msg, Err: err} }

// KindOf 非业务错误一律 KindUnknown（外层按 500 处理）
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func IsKind(err error, k ErrKind) bool { return KindOf(err) == k }
