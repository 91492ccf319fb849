/*
DESCRIPTION
  Field validation rules for account and roster forms.

AUTHORS
  Maya Clarke <maya@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package validate implements the field validation rules applied
// before any account or roster write. Each rule is a pure function
// from a candidate value (and occasionally sibling fields) to a
// displayable message; the empty string means the value is valid.
// Validation never returns an error value.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Valid is the message returned for acceptable input.
const Valid = ""

// specialChars is the fixed set of password special characters.
const specialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

var (
	emailRe    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})$`)
	postcodeRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9R][0-9A-Z]? [0-9][A-Z]{2}$`)
	dateRe     = regexp.MustCompile(`^(0[1-9]|[12][0-9]|3[01])/(0[1-9]|1[0-2])/(19|20)\d{2}$`)
	phoneSepRe = regexp.MustCompile(`[\s\-\(\)]`)
	digitsRe   = regexp.MustCompile(`^[0-9]+$`)
)

// Required returns a message unless the value is non-empty. The
// label names the field in the message, e.g. "First name".
func Required(value, label string) string {
	if value == "" {
		return label + " is required"
	}
	return Valid
}

// Email validates an email address: non-empty, with a local part, an
// "@", a dotted domain and a TLD of at least two letters.
func Email(v string) string {
	if v == "" {
		return "Email is required"
	}
	if !emailRe.MatchString(v) {
		return "Please enter a valid email address"
	}
	return Valid
}

// strongPassword reports whether a password is at least 8 characters
// with at least one uppercase letter, one lowercase letter, one
// digit and one special character.
func strongPassword(v string) bool {
	if utf8.RuneCountInString(v) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, c := range v {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(specialChars, c):
			special = true
		}
	}
	return upper && lower && digit && special
}

// Password validates a new-account password: required and strong.
func Password(v string) string {
	if v == "" {
		return "Password is required"
	}
	if !strongPassword(v) {
		return "Password must be strong (8+ chars, upper/lower case, digit, special char)"
	}
	return Valid
}

// NewPassword validates a password change: an empty value means no
// change and is valid; anything else must be strong.
func NewPassword(v string) string {
	if v == "" {
		return Valid
	}
	if !strongPassword(v) {
		return "Password must be strong (8+ chars, upper/lower case, digit, special char)"
	}
	return Valid
}

// PasswordIssues returns a strength hint listing what a candidate
// password still lacks, or a confirmation when it lacks nothing.
func PasswordIssues(v string) string {
	if v == "" {
		return Valid
	}
	var issues []string
	if utf8.RuneCountInString(v) < 8 {
		issues = append(issues, "at least 8 characters")
	}
	if !strings.ContainsFunc(v, func(c rune) bool { return c >= 'A' && c <= 'Z' }) {
		issues = append(issues, "one uppercase letter")
	}
	if !strings.ContainsFunc(v, func(c rune) bool { return c >= 'a' && c <= 'z' }) {
		issues = append(issues, "one lowercase letter")
	}
	if !strings.ContainsFunc(v, func(c rune) bool { return c >= '0' && c <= '9' }) {
		issues = append(issues, "one digit")
	}
	if !strings.ContainsAny(v, specialChars) {
		issues = append(issues, "one special character")
	}
	if len(issues) == 0 {
		return "Strong password"
	}
	return "Password must contain: " + strings.Join(issues, ", ")
}

// ConfirmPassword validates that the confirmation matches the
// password exactly.
func ConfirmPassword(password, confirm string) string {
	if confirm == "" {
		return "Please confirm your password"
	}
	if password != confirm {
		return "Passwords do not match"
	}
	return Valid
}

// CurrentPassword validates the current password for a password
// change: required only when a new password was entered.
func CurrentPassword(current, newPassword string) string {
	if newPassword == "" {
		return Valid
	}
	if current == "" {
		return "Current password is required to change password"
	}
	return Valid
}

// Phone validates a phone number: required, and digits only after
// stripping spaces, hyphens and parentheses, with 10 to 15 digits.
func Phone(v string) string {
	if v == "" {
		return "Phone number is required"
	}
	clean := phoneSepRe.ReplaceAllString(v, "")
	if !digitsRe.MatchString(clean) || len(clean) < 10 || len(clean) > 15 {
		return "Please enter a valid phone number (10-15 digits)"
	}
	return Valid
}

// Postcode validates a UK postcode.
func Postcode(v string) string {
	if v == "" {
		return "Postcode is required"
	}
	if !postcodeRe.MatchString(v) {
		return "Please enter a valid UK postcode (e.g., SW1A 1AA)"
	}
	return Valid
}

// Date validates a required DD/MM/YYYY date with day 01-31, month
// 01-12 and a 19xx or 20xx year. The label names the field, e.g.
// "Birth date".
func Date(v, label string) string {
	if v == "" {
		return label + " is required"
	}
	if !dateRe.MatchString(v) {
		return "Please enter date in DD/MM/YYYY format"
	}
	return Valid
}

// OptionalDate validates a DD/MM/YYYY date that may be empty, such
// as the license dates.
func OptionalDate(v string) string {
	if v == "" {
		return Valid
	}
	if !dateRe.MatchString(v) {
		return "Please enter date in DD/MM/YYYY format"
	}
	return Valid
}

// Terms validates the membership-terms consent, which must be given
// to create a student.
func Terms(agreed bool) string {
	if !agreed {
		return "You must agree to the membership terms"
	}
	return Valid
}

// AuthorizationCode validates the sign-up authorization code against
// the configured shared secret, case-insensitively.
func AuthorizationCode(code, secret string) string {
	if !strings.EqualFold(code, secret) {
		return "Invalid authorization code"
	}
	return Valid
}

// RegisterValidations registers the rules above as custom
// validations, so request types can carry validate tags alongside
// the built-in ones.
func RegisterValidations(v *validator.Validate) error {
	rules := map[string]func(string) string{
		"ukphone":    Phone,
		"ukpostcode": Postcode,
		"dmydate":    func(s string) string { return OptionalDate(s) },
		"strongpassword": func(s string) string {
			if !strongPassword(s) {
				return "weak"
			}
			return Valid
		},
	}
	for tag, rule := range rules {
		rule := rule
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String()) == Valid
		})
		if err != nil {
			return err
		}
	}
	return nil
}
