package discount

import "github.com/pkg/errors"

var (
	ErrInvalidDiscountCode = errors.New("invalid discount code")
	ErrDiscountAlreadyUsed = errors.New("discount already used")
	ErrDuplicateCode       = errors.New("discount code already exists")
	ErrValidation          = errors.New("validation")
	ErrNotFound            = errors.New("discount not found")
)
