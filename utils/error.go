package utils

import (
	"errors"
	"fmt"
)

var (
	ErrNilParameter   = errors.New("nil parameter")
	ErrWrongParameter = errors.New("wrong parameter")
	ErrInvalidData    = errors.New("invalid data")
)

// ErrInErr wraps an error with a description and optional data. It is the
// standard way to annotate an error while propagating it upward.
type ErrInErr struct {
	ErrDesc   string
	ErrDetail error
	Data      any
}

func NewErr(desc string, e error) error {
	return ErrInErr{ErrDesc: desc, ErrDetail: e}
}

func NewDataErr(desc string, e error, data any) error {
	return ErrInErr{ErrDesc: desc, ErrDetail: e, Data: data}
}

func (e ErrInErr) Error() string {
	return e.String()
}

func (e ErrInErr) Unwrap() error {
	return e.ErrDetail
}

func (e ErrInErr) Is(err error) bool {
	return errors.Is(e.ErrDetail, err)
}

func (e ErrInErr) String() string {
	if e.Data != nil {
		if e.ErrDetail != nil {
			return fmt.Sprintf("%s : %s, Data: %v", e.ErrDesc, e.ErrDetail.Error(), e.Data)
		}
		return fmt.Sprintf("%s , Data: %v", e.ErrDesc, e.Data)
	}
	if e.ErrDetail != nil {
		return fmt.Sprintf("%s : %s", e.ErrDesc, e.ErrDetail.Error())
	}
	return e.ErrDesc
}
