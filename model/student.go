/*
DESCRIPTION
  Datastore student type and roster operations.

AUTHORS
  Maya Clarke <maya@dojopal.app>
  Tom Ashworth <tom@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dojopal/cloud/datastore"
)

// LicensePending is the license application status of a student whose
// renewal request awaits administrative resolution.
const LicensePending = "pending"

// Student represents one club member on an account's roster. License
// dates are DD/MM/YYYY strings and may be empty. The grading history
// is append-only.
type Student struct {
	ID                       string    `firestore:"id" json:"id"`
	FirstName                string    `firestore:"firstName" json:"firstName"`
	LastName                 string    `firestore:"lastName" json:"lastName"`
	EmailAddress             string    `firestore:"emailAddress" json:"emailAddress"`
	Phone                    string    `firestore:"phone" json:"phone"`
	Address                  string    `firestore:"address" json:"address"`
	Postcode                 string    `firestore:"postcode" json:"postcode"`
	Occupation               string    `firestore:"occupation" json:"occupation"`
	BirthDate                string    `firestore:"birthDate" json:"birthDate"`
	ClubName                 string    `firestore:"clubName" json:"clubName"`
	DateJoined               time.Time `firestore:"dateJoined" json:"dateJoined"`
	AgreedToMembershipTerms  bool      `firestore:"agreedToMembershipTerms" json:"agreedToMembershipTerms"`
	AgreedToPhotography      bool      `firestore:"agreedToPhotography" json:"agreedToPhotography"`
	LicDate                  string    `firestore:"licDate" json:"licDate"`
	LicExpDate               string    `firestore:"licExpDate" json:"licExpDate"`
	LicenseApplicationStatus string    `firestore:"licenseApplicationStatus" json:"licenseApplicationStatus,omitempty"`
	GradingHistory           []Grade   `firestore:"gradingHistory" json:"gradingHistory"`
}

// FullName returns the student's first and last name joined by a
// space, with leading and trailing whitespace removed.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// FullAddress returns the address and postcode joined by ", ", with
// whitespace and then stray commas trimmed from either end.
func (s *Student) FullAddress() string {
	return strings.Trim(strings.TrimSpace(s.Address+", "+s.Postcode), ",")
}

// HighestGrade returns the grade with the highest rank in the
// student's grading history, or nil for an empty history. The first
// maximum encountered wins.
func (s *Student) HighestGrade() *Grade {
	var best *Grade
	for i := range s.GradingHistory {
		if best == nil || s.GradingHistory[i].Order() > best.Order() {
			best = &s.GradingHistory[i]
		}
	}
	return best
}

// IsLicenseExpired reports whether the student's license expiry date
// has been reached. See IsLicenseExpiredAt.
func (s *Student) IsLicenseExpired() bool {
	return s.IsLicenseExpiredAt(time.Now())
}

// IsLicenseExpiredAt reports whether the student's license expiry
// date has been reached as of the given time. A license counts as
// expired for the whole of its expiry month, not just after it. An
// empty or malformed expiry date is treated as not expired.
func (s *Student) IsLicenseExpiredAt(now time.Time) bool {
	if s.LicExpDate == "" {
		return false
	}

	parts := strings.Split(s.LicExpDate, "/")
	if len(parts) != 3 {
		return false
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return false
	}

	currentYear, currentMonth := now.Year(), int(now.Month())
	if year < currentYear {
		return true
	}
	if year == currentYear && month <= currentMonth {
		return true
	}
	return false
}

// IsLicenseApplicationPending reports whether a license application
// awaits administrative resolution.
func (s *Student) IsLicenseApplicationPending() bool {
	return s.LicenseApplicationStatus == LicensePending
}

// ensureIDs assigns generated IDs to students and grades that lack
// one. Records written before IDs were stored decode without them.
func (acc *Account) ensureIDs() {
	for i := range acc.Students {
		if acc.Students[i].ID == "" {
			acc.Students[i].ID = uuid.NewString()
		}
		for j := range acc.Students[i].GradingHistory {
			if acc.Students[i].GradingHistory[j].ID == "" {
				acc.Students[i].GradingHistory[j].ID = uuid.NewString()
			}
		}
	}
}

// AddStudent appends a student to the account's roster via a whole
// aggregate read-modify-write. Creation is rejected before any write
// unless the membership terms were agreed to. The student is
// assigned an ID and joining date if it has none.
func AddStudent(ctx context.Context, store datastore.Store, accountID string, s *Student) error {
	if !s.AgreedToMembershipTerms {
		return ErrTermsNotAgreed
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.DateJoined.IsZero() {
		s.DateJoined = time.Now()
	}
	acc, err := GetAccount(ctx, store, accountID)
	if err != nil {
		return err
	}
	acc.Students = append(acc.Students, *s)
	return PutAccount(ctx, store, acc, accountID)
}

// UpdateStudent replaces the personal and consent fields of the
// roster entry matching s.ID. License dates, application status,
// joining date and grading history are preserved.
func UpdateStudent(ctx context.Context, store datastore.Store, accountID string, s Student) error {
	acc, err := GetAccount(ctx, store, accountID)
	if err != nil {
		return err
	}
	i := acc.findStudent(s.ID)
	if i == -1 {
		return ErrStudentNotFound
	}
	old := acc.Students[i]
	s.DateJoined = old.DateJoined
	s.LicDate = old.LicDate
	s.LicExpDate = old.LicExpDate
	s.LicenseApplicationStatus = old.LicenseApplicationStatus
	s.GradingHistory = old.GradingHistory
	acc.Students[i] = s
	return PutAccount(ctx, store, acc, accountID)
}

// DeleteStudent excises the student with the given ID from the
// account's roster.
func DeleteStudent(ctx context.Context, store datastore.Store, accountID, studentID string) error {
	acc, err := GetAccount(ctx, store, accountID)
	if err != nil {
		return err
	}
	i := acc.findStudent(studentID)
	if i == -1 {
		return ErrStudentNotFound
	}
	acc.Students = append(acc.Students[:i], acc.Students[i+1:]...)
	return PutAccount(ctx, store, acc, accountID)
}

// ApplyForLicense submits a license renewal for the roster entry
// matching s.ID, updating the personal and consent fields and
// setting the application status to pending. License dates and
// grading history are preserved; the dates are set out of band when
// the application is resolved.
func ApplyForLicense(ctx context.Context, store datastore.Store, accountID string, s Student) error {
	acc, err := GetAccount(ctx, store, accountID)
	if err != nil {
		return err
	}
	i := acc.findStudent(s.ID)
	if i == -1 {
		return ErrStudentNotFound
	}
	old := acc.Students[i]
	s.DateJoined = old.DateJoined
	s.LicDate = old.LicDate
	s.LicExpDate = old.LicExpDate
	s.GradingHistory = old.GradingHistory
	s.LicenseApplicationStatus = LicensePending
	acc.Students[i] = s
	return PutAccount(ctx, store, acc, accountID)
}
