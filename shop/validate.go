package shop

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidService is returned for a service that cannot be saved.
	ErrInvalidService = errors.New("shop: invalid service")

	// ErrInvalidStaff is returned for a staff member that cannot be saved.
	ErrInvalidStaff = errors.New("shop: invalid staff")

	// ErrInvalidDiscount is returned for a discount that cannot be saved.
	ErrInvalidDiscount = errors.New("shop: invalid discount")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateService checks field constraints and that the service is priced,
// either directly or through at least one priced option.
func ValidateService(s Service) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidService, s.Name, err)
	}
	if s.Price > 0 {
		return nil
	}
	for _, o := range s.Options {
		if o.Price > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w %q: needs a price or a priced option", ErrInvalidService, s.Name)
}

// ValidateStaff checks field constraints of a staff member.
func ValidateStaff(s Staff) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidStaff, s.Name, err)
	}
	return nil
}

// ValidateDiscount checks field constraints of a discount.
func ValidateDiscount(d Discount) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidDiscount, d.Label(), err)
	}
	if d.Type == DiscountPercentage && d.Value > 100 {
		return fmt.Errorf("%w %q: percentage above 100", ErrInvalidDiscount, d.Label())
	}
	return nil
}

// Validate checks every dependent of a and returns all problems joined.
func Validate(a Aggregate) error {
	var errs []error
	for _, s := range a.Services {
		if err := ValidateService(s); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range a.Staff {
		if err := ValidateStaff(s); err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range a.Discounts {
		if err := ValidateDiscount(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
