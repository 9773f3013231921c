package errs

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	ErrStatusInternalServer         = http.StatusInternalServerError
	ErrStatusClient                 = http.StatusBadRequest
	ErrStatusNotLoggedIn            = http.StatusUnauthorized
	ErrStatusNoPermission           = http.StatusForbidden
	ErrStatusNotFound               = http.StatusNotFound
	ErrStatusFileSizeExceedingLimit = http.StatusRequestEntityTooLarge
	ErrStatusConflict               = http.StatusConflict
	ErrStatusUnavailable            = http.StatusServiceUnavailable
)

// Stable, machine-readable error kinds returned alongside every error response.
const (
	KindValidation      = "VALIDATION_ERROR"
	KindConflict        = "CONFLICT"
	KindNotFound        = "NOT_FOUND"
	KindForbidden       = "FORBIDDEN"
	KindUnauthenticated = "UNAUTHENTICATED"
	KindInfrastructure  = "INFRASTRUCTURE_ERROR"
	KindInternal        = "INTERNAL"
)

var (
	ErrInternalServer    = errors.New("Internal server error")
	ErrClient            = errors.New("Bad request")
	ErrNotLoggedIn       = errors.New("Unauthorized access")
	ErrUnauthorized      = errors.New("Forbidden access")
	ErrNotAnImage        = errors.New("Uploaded file is not an image")
	ErrFileTooLarge      = errors.New("Uploaded file exceeds the size limit")
	ErrInvalidID         = errors.New("Invalid identifier")
	ErrInvalidName       = errors.New("Category name is required and must be at most 100 characters")
	ErrInvalidSort       = errors.New("Unsupported sort order")
	ErrInvalidQuantity   = errors.New("Quantity must be greater than zero")
	ErrCircularReference = errors.New("A category cannot be moved under itself or one of its subcategories")
	ErrDuplicateName     = errors.New("Category already exists")
	ErrDuplicateSKU      = errors.New("SKU already exists")
	ErrHasProducts       = errors.New("Category still has products")
	ErrHasChildren       = errors.New("Category still has subcategories")
	ErrParentHasProducts = errors.New("Parent category holds products. Move products first.")
	ErrInsufficientStock = errors.New("Insufficient stock")
	ErrCategoryNotFound  = errors.New("Category not found")
	ErrParentNotFound    = errors.New("Parent category not found")
	ErrProductNotFound   = errors.New("Product not found")
	ErrNotALeaf          = errors.New("Please select a sub-category (leaf category)")
	ErrInfrastructure    = errors.New("Service temporarily unavailable, please retry")
)

type errorClass struct {
	status int
	kind   string
}

var errorMap = map[error]errorClass{
	ErrInternalServer:    {ErrStatusInternalServer, KindInternal},
	ErrClient:            {ErrStatusClient, KindValidation},
	ErrNotLoggedIn:       {ErrStatusNotLoggedIn, KindUnauthenticated},
	ErrUnauthorized:      {ErrStatusNoPermission, KindForbidden},
	ErrNotAnImage:        {ErrStatusClient, KindValidation},
	ErrFileTooLarge:      {ErrStatusFileSizeExceedingLimit, KindValidation},
	ErrInvalidID:         {ErrStatusClient, KindValidation},
	ErrInvalidName:       {ErrStatusClient, KindValidation},
	ErrInvalidSort:       {ErrStatusClient, KindValidation},
	ErrInvalidQuantity:   {ErrStatusClient, KindValidation},
	ErrCircularReference: {ErrStatusClient, KindValidation},
	ErrDuplicateName:     {ErrStatusConflict, KindConflict},
	ErrDuplicateSKU:      {ErrStatusConflict, KindConflict},
	ErrHasProducts:       {ErrStatusConflict, KindConflict},
	ErrHasChildren:       {ErrStatusConflict, KindConflict},
	ErrParentHasProducts: {ErrStatusConflict, KindConflict},
	ErrInsufficientStock: {ErrStatusConflict, KindConflict},
	ErrCategoryNotFound:  {ErrStatusNotFound, KindNotFound},
	ErrParentNotFound:    {ErrStatusNotFound, KindNotFound},
	ErrProductNotFound:   {ErrStatusNotFound, KindNotFound},
	ErrNotALeaf:          {ErrStatusNoPermission, KindForbidden},
	ErrInfrastructure:    {ErrStatusUnavailable, KindInfrastructure},
}

func classify(err error) (errorClass, bool) {
	if err == nil {
		return errorClass{}, false
	}

	// infrastructure wins over whatever store error it wraps
	if errors.Is(err, ErrInfrastructure) {
		return errorMap[ErrInfrastructure], true
	}

	for sentinel, class := range errorMap {
		if errors.Is(err, sentinel) {
			return class, true
		}
	}

	return errorClass{}, false
}

func GetErrorStatusCode(err error) int {
	class, ok := classify(err)
	if !ok {
		return ErrStatusInternalServer
	}
	return class.status
}

func GetErrorKind(err error) string {
	class, ok := classify(err)
	if !ok {
		return KindInternal
	}
	return class.kind
}

// GetErrorMessage returns the text that is safe to show to a caller.
func GetErrorMessage(err error) string {
	if _, ok := classify(err); !ok {
		return ErrInternalServer.Error()
	}
	return err.Error()
}

// CountError reports a blocked delete together with the number of records in the way.
type CountError struct {
	Err   error
	Count int64
}

func HasProducts(count int64) error {
	return &CountError{Err: ErrHasProducts, Count: count}
}

func HasChildren(count int64) error {
	return &CountError{Err: ErrHasChildren, Count: count}
}

func (e *CountError) Error() string {
	switch e.Err {
	case ErrHasProducts:
		return fmt.Sprintf("Cannot delete category with %d products. Move products first.", e.Count)
	case ErrHasChildren:
		return fmt.Sprintf("Cannot delete category with %d subcategories. Delete subcategories first.", e.Count)
	}
	return fmt.Sprintf("%s (%d)", e.Err.Error(), e.Count)
}

func (e *CountError) Unwrap() error {
	return e.Err
}

// InfrastructureError wraps a failure of the store or another backing service.
// Its message never includes the cause; use Unwrap or Cause for logging.
// Unwrap yields only the cause so single-chain walkers, such as the mongo
// driver's error label checks, still reach the driver error.
type InfrastructureError struct {
	Op  string
	Err error
}

func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}

	var infraErr *InfrastructureError
	if errors.As(err, &infraErr) {
		return err
	}

	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return ErrInfrastructure.Error()
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}

func (e *InfrastructureError) Cause() error {
	return e.Err
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}
