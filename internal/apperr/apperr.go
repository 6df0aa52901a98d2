// Package apperr описывает таксономию ошибок, общую для движка обменов,
// складского учёта, каталога и HTTP-слоя.
package apperr

import (
	"errors"
	"fmt"
)

// Kind определяет класс ошибки
type Kind string

const (
	KindValidation             Kind = "validation"
	KindState                  Kind = "state"
	KindForbidden              Kind = "forbidden"
	KindUnavailable            Kind = "unavailable"
	KindConcurrentModification Kind = "concurrent_modification"
	KindNotFound               Kind = "not_found"
	KindStorage                Kind = "storage"
)

// Error - ошибка с классом и сообщением для пользователя
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по классу и сообщению, чтобы обёрнутые копии
// сентинелов совпадали с оригиналом
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New создает ошибку заданного класса
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap оборачивает причину в ошибку заданного класса
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Storage оборачивает сбой хранилища
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(KindStorage, op, err)
}

// KindOf возвращает класс ошибки. Неклассифицированные ошибки считаются
// сбоем хранилища.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// MessageOf возвращает сообщение, пригодное для показа пользователю
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

var (
	ErrNotFound               = New(KindNotFound, "not found")
	ErrForbidden              = New(KindForbidden, "caller is not a party to this exchange")
	ErrConcurrentModification = New(KindConcurrentModification, "already handled by a concurrent action")
)
