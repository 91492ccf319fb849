/*
DESCRIPTION
  Form-level validation, the conjunction of per-field rules.

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

package validate

// SignUpForm holds the account sign-up fields.
type SignUpForm struct {
	FirstName       string
	LastName        string
	EmailAddress    string
	ClubName        string
	Password        string
	ConfirmPassword string
}

// Errors returns the current message for each field, keyed by field
// name. Valid fields map to the empty string.
func (f *SignUpForm) Errors() map[string]string {
	return map[string]string{
		"firstName":       Required(f.FirstName, "First name"),
		"lastName":        Required(f.LastName, "Last name"),
		"emailAddress":    Email(f.EmailAddress),
		"clubName":        Required(f.ClubName, "Club name"),
		"password":        Password(f.Password),
		"confirmPassword": ConfirmPassword(f.Password, f.ConfirmPassword),
	}
}

// Valid reports whether every field rule passes.
func (f *SignUpForm) Valid() bool {
	return allValid(f.Errors())
}

// StudentForm holds the add/edit student fields.
type StudentForm struct {
	FirstName               string
	LastName                string
	EmailAddress            string
	Phone                   string
	Address                 string
	Postcode                string
	Occupation              string
	BirthDate               string
	ClubName                string
	LicDate                 string
	LicExpDate              string
	AgreedToMembershipTerms bool
}

// Errors returns the current message for each field, keyed by field
// name. The license dates are optional; everything else is required.
func (f *StudentForm) Errors() map[string]string {
	return map[string]string{
		"firstName":               Required(f.FirstName, "First name"),
		"lastName":                Required(f.LastName, "Last name"),
		"emailAddress":            Email(f.EmailAddress),
		"phone":                   Phone(f.Phone),
		"address":                 Required(f.Address, "Address"),
		"postcode":                Postcode(f.Postcode),
		"occupation":              Required(f.Occupation, "Occupation"),
		"birthDate":               Date(f.BirthDate, "Birth date"),
		"clubName":                Required(f.ClubName, "Club name"),
		"licDate":                 OptionalDate(f.LicDate),
		"licExpDate":              OptionalDate(f.LicExpDate),
		"agreedToMembershipTerms": Terms(f.AgreedToMembershipTerms),
	}
}

// Valid reports whether every field rule passes.
func (f *StudentForm) Valid() bool {
	return allValid(f.Errors())
}

// GradeForm holds the add-grade fields. The grade name itself is
// checked for presence only; the taxonomy constrains the choices at
// presentation time and unknown names simply rank as zero.
type GradeForm struct {
	DatePassed string
	Examiner   string
	Grade      string
	GradeID    string
}

// Errors returns the current message for each field, keyed by field name.
func (f *GradeForm) Errors() map[string]string {
	return map[string]string{
		"datePassed": Date(f.DatePassed, "Date passed"),
		"examiner":   Required(f.Examiner, "Examiner name"),
		"grade":      Required(f.Grade, "Grade"),
		"gradeId":    Required(f.GradeID, "Grade ID"),
	}
}

// Valid reports whether every field rule passes.
func (f *GradeForm) Valid() bool {
	return allValid(f.Errors())
}

// AccountSettingsForm holds the account settings fields. Empty
// password fields mean the password is unchanged; an email equal to
// the current one means the email is unchanged.
type AccountSettingsForm struct {
	CurrentEmail       string
	NewEmail           string
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// Errors returns the current message for each field, keyed by field name.
func (f *AccountSettingsForm) Errors() map[string]string {
	errs := map[string]string{
		"emailAddress":    Valid,
		"currentPassword": CurrentPassword(f.CurrentPassword, f.NewPassword),
		"newPassword":     NewPassword(f.NewPassword),
		"confirmPassword": Valid,
	}
	if f.NewEmail != f.CurrentEmail {
		errs["emailAddress"] = Email(f.NewEmail)
	}
	if f.NewPassword != "" {
		errs["confirmPassword"] = ConfirmPassword(f.NewPassword, f.ConfirmNewPassword)
	}
	return errs
}

// Valid reports whether every field rule passes.
func (f *AccountSettingsForm) Valid() bool {
	return allValid(f.Errors())
}

// Changed reports whether the form changes anything at all.
func (f *AccountSettingsForm) Changed() bool {
	return f.NewEmail != f.CurrentEmail || f.NewPassword != ""
}

// allValid reports whether every message in a field error map is Valid.
func allValid(errs map[string]string) bool {
	for _, msg := range errs {
		if msg != Valid {
			return false
		}
	}
	return true
}
