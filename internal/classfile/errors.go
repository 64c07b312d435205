package classfile

import "errors"

var (
	ErrMalformedClass = errors.New("malformed class file")
	ErrCodeTooLarge   = errors.New("method code too large")
	ErrBranchOverflow = errors.New("branch offset out of range")
	ErrTooManyConsts  = errors.New("constant pool overflow")
	ErrAnalysis       = errors.New("bytecode analysis failed")
)
