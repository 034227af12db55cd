package types

import "errors"

// ErrEmptyInput is returned by outer surfaces when no text was supplied at all.
// Extraction itself treats empty text as an empty profile, not an error.
var ErrEmptyInput = errors.New("no input text provided")
