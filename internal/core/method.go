package core

import (
	"strings"
	"unicode/utf8"
)

// PaymentMethod labels how a transaction was settled. The well-known values
// below cover the usual cases; any other trimmed label up to 64 characters is
// accepted as free text. The empty value means "not specified".
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "Cash"
	MethodGPay       PaymentMethod = "GPay"
	MethodCard       PaymentMethod = "Card"
	MethodBank       PaymentMethod = "Bank"
	MethodAccount    PaymentMethod = "Account"
	MethodCreditCard PaymentMethod = "Credit Card"

	// NotSpecified is the grouping label for transactions without a method.
	NotSpecified = "Not Specified"

	maxMethodLen = 64
)

var wellKnownMethods = []PaymentMethod{MethodCash, MethodGPay, MethodCard, MethodBank, MethodAccount, MethodCreditCard}

// ParseMethod normalizes user input. Well-known labels match case-insensitively
// and come back in canonical spelling; "Not Specified" maps to the empty value.
func ParseMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NotSpecified) {
		return "", nil
	}
	for _, m := range wellKnownMethods {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	m := PaymentMethod(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (m PaymentMethod) Validate() error {
	if m == "" {
		return nil
	}
	if strings.TrimSpace(string(m)) != string(m) || utf8.RuneCountInString(string(m)) > maxMethodLen {
		return ErrInvalidMethod
	}
	return nil
}

// Label is the display and grouping name.
func (m PaymentMethod) Label() string {
	if m == "" {
		return NotSpecified
	}
	return string(m)
}

// WellKnown reports whether m is one of the predefined methods.
func (m PaymentMethod) WellKnown() bool {
	for _, w := range wellKnownMethods {
		if m == w {
			return true
		}
	}
	return false
}

// DefaultMethods are offered to users before they have any history.
func DefaultMethods() []PaymentMethod {
	return []PaymentMethod{MethodCash, MethodGPay, MethodCard, MethodBank}
}
