package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers without a country prefix
const DefaultPhoneRegion = "AU"

// PasswordRule checks a candidate password
type PasswordRule func(password string) error

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// ValidatePassword is the default PasswordRule: 8 to 128 characters, not
// only digits, and containing at least one letter.
func ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(8, 128),
		validation.By(notDigitsOnly),
		validation.By(hasLetter),
	)
}

func notDigitsOnly(value any) error {
	s, _ := value.(string)
	if digitsOnly.MatchString(s) {
		return errors.New("must not be entirely numeric")
	}
	return nil
}

func hasLetter(value any) error {
	s, _ := value.(string)
	for _, r := range s {
		if unicode.IsLetter(r) {
			return nil
		}
	}
	return errors.New("must contain at least one letter")
}

// ValidateStringEquals checks that a field matches str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// NormalizePhone formats phone as E.164 when it parses as a valid number for
// region. Anything else is returned trimmed and unchanged, the number is
// never rejected.
func NormalizePhone(phone, region string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
