// Package validate checks operator input before anything is written.
package validate

import (
	"errors"
	"fmt"
	"pagobot/model"
	"strconv"
	"strings"
)

var ErrValidation = errors.New("validation error")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// KeyOK checks that the normalized phone key is present.
func KeyOK(key string) error {
	if strings.TrimPrefix(strings.TrimSpace(key), "+") == "" {
		return invalid("phone number required")
	}
	return nil
}

// PayDayOK checks that day is a day of month.
func PayDayOK(day int) error {
	if day < 1 || day > 31 {
		return invalid("pay day must be between 1 and 31, got %d", day)
	}
	return nil
}

// AmountOK checks that amount is a positive decimal such as "350" or "350.50".
func AmountOK(amount string) error {
	a := strings.TrimSpace(amount)
	if a == "" {
		return invalid("amount required")
	}
	v, err := strconv.ParseFloat(a, 64)
	if err != nil || v <= 0 {
		return invalid("amount must be a positive number, got %q", amount)
	}
	return nil
}

// NameOK checks that the client name is non-empty after trimming whitespace.
func NameOK(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("client name required")
	}
	return nil
}

// Client runs every check an operator-entered record must pass.
func Client(key string, rec model.ClientRecord) error {
	if err := KeyOK(key); err != nil {
		return err
	}
	if err := NameOK(rec.Name); err != nil {
		return err
	}
	if err := PayDayOK(rec.PayDay); err != nil {
		return err
	}
	return AmountOK(rec.Amount)
}
