package dispatcher

import "errors"

// Rejection reasons. None of them produce a reply on the wire; callers log
// them and carry on.
var (
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrUnknownAxis         = errors.New("unknown axis")
	ErrNonNumericParameter = errors.New("non-numeric parameter")
	ErrUnsupportedKeyword  = errors.New("unsupported keyword")
	ErrArity               = errors.New("wrong parameter count")
	ErrUnknownVariable     = errors.New("unknown variable")
)
