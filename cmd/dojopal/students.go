/*
AUTHORS
  Maya Clarke <maya@dojopal.app>
  Tom Ashworth <tom@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This file is part of DojoPal. DojoPal is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  DojoPal is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with DojoPal in gpl.txt.  If not, see
  <http://www.gnu.org/licenses/>.
*/

package main

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dojopal/cloud/datastore"
	"github.com/dojopal/cloud/model"
	"github.com/dojopal/cloud/notify"
	"github.com/dojopal/cloud/validate"
)

// studentRequest is the wire form of a roster entry for create,
// update and license application requests.
type studentRequest struct {
	FirstName               string `json:"firstName" validate:"required"`
	LastName                string `json:"lastName" validate:"required"`
	EmailAddress            string `json:"emailAddress" validate:"required"`
	Phone                   string `json:"phone" validate:"required,ukphone"`
	Address                 string `json:"address" validate:"required"`
	Postcode                string `json:"postcode" validate:"required,ukpostcode"`
	Occupation              string `json:"occupation" validate:"required"`
	BirthDate               string `json:"birthDate" validate:"required,dmydate"`
	ClubName                string `json:"clubName" validate:"required"`
	LicDate                 string `json:"licDate" validate:"omitempty,dmydate"`
	LicExpDate              string `json:"licExpDate" validate:"omitempty,dmydate"`
	AgreedToMembershipTerms bool   `json:"agreedToMembershipTerms"`
	AgreedToPhotography     bool   `json:"agreedToPhotography"`
}

// form maps the request onto its validation form.
func (req *studentRequest) form() validate.StudentForm {
	return validate.StudentForm{
		FirstName:               req.FirstName,
		LastName:                req.LastName,
		EmailAddress:            req.EmailAddress,
		Phone:                   req.Phone,
		Address:                 req.Address,
		Postcode:                req.Postcode,
		Occupation:              req.Occupation,
		BirthDate:               req.BirthDate,
		ClubName:                req.ClubName,
		LicDate:                 req.LicDate,
		LicExpDate:              req.LicExpDate,
		AgreedToMembershipTerms: req.AgreedToMembershipTerms,
	}
}

// student maps the request onto a model student.
func (req *studentRequest) student() model.Student {
	return model.Student{
		FirstName:               req.FirstName,
		LastName:                req.LastName,
		EmailAddress:            req.EmailAddress,
		Phone:                   req.Phone,
		Address:                 req.Address,
		Postcode:                req.Postcode,
		Occupation:              req.Occupation,
		BirthDate:               req.BirthDate,
		ClubName:                req.ClubName,
		LicDate:                 req.LicDate,
		LicExpDate:              req.LicExpDate,
		AgreedToMembershipTerms: req.AgreedToMembershipTerms,
		AgreedToPhotography:     req.AgreedToPhotography,
	}
}

// approvedAccount resolves the signed-in user's account and requires
// it to have been approved by an administrator. Roster operations
// are forbidden on pending accounts.
func (svc *service) approvedAccount(c *fiber.Ctx) (string, *model.Account, error) {
	_, ident, err := svc.identity(c)
	if err != nil {
		return "", nil, err
	}
	acc, err := model.GetAccount(c.Context(), svc.store, ident.UID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return "", nil, logAndReturnError(c, "account record not found", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return "", nil, logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}
	if !acc.Approved {
		return "", nil, fiber.NewError(fiber.StatusForbidden, "account pending approval")
	}
	return ident.UID, acc, nil
}

// listStudentsHandler returns the account's roster in insertion
// order.
func (svc *service) listStudentsHandler(c *fiber.Ctx) error {
	_, acc, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	if acc.Students == nil {
		acc.Students = []model.Student{}
	}
	return c.JSON(acc.Students)
}

// addStudentHandler appends a new student to the roster.
func (svc *service) addStudentHandler(c *fiber.Ctx) error {
	var req studentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}
	uid, _, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	form := req.form()
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}
	s := req.student()
	err = model.AddStudent(c.Context(), svc.store, uid, &s)
	if errors.Is(err, model.ErrTermsNotAgreed) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not add student: %v", err))
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// updateStudentHandler replaces the personal and consent fields of a
// roster entry. License dates, application status and grading
// history cannot be changed this way.
func (svc *service) updateStudentHandler(c *fiber.Ctx) error {
	var req studentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}
	uid, _, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	form := req.form()
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}
	s := req.student()
	s.ID = c.Params("id")
	err = model.UpdateStudent(c.Context(), svc.store, uid, s)
	if errors.Is(err, model.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not update student: %v", err))
	}
	return svc.studentResponse(c, uid, s.ID)
}

// deleteStudentHandler removes a student from the roster.
func (svc *service) deleteStudentHandler(c *fiber.Ctx) error {
	uid, _, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	err = model.DeleteStudent(c.Context(), svc.store, uid, c.Params("id"))
	if errors.Is(err, model.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not delete student: %v", err))
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// addGradeHandler appends a grade to a student's grading history.
func (svc *service) addGradeHandler(c *fiber.Ctx) error {
	var req struct {
		DatePassed string `json:"datePassed" validate:"required,dmydate"`
		Examiner   string `json:"examiner" validate:"required"`
		Grade      string `json:"grade" validate:"required"`
		GradeID    string `json:"gradeId" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}
	uid, _, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	form := validate.GradeForm{
		DatePassed: req.DatePassed,
		Examiner:   req.Examiner,
		Grade:      req.Grade,
		GradeID:    req.GradeID,
	}
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}
	g := model.Grade{
		DatePassed: req.DatePassed,
		Examiner:   req.Examiner,
		Grade:      req.Grade,
		GradeID:    req.GradeID,
	}
	err = model.AddGrade(c.Context(), svc.store, uid, c.Params("id"), &g)
	if errors.Is(err, model.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not add grade: %v", err))
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

// applyForLicenseHandler submits a license application for a
// student, updating the personal details and marking the application
// pending. The license dates themselves are set out of band when the
// application is resolved.
func (svc *service) applyForLicenseHandler(c *fiber.Ctx) error {
	var req studentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}
	uid, acc, err := svc.approvedAccount(c)
	if err != nil {
		return err
	}
	form := req.form()
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}
	s := req.student()
	s.ID = c.Params("id")
	err = model.ApplyForLicense(c.Context(), svc.store, uid, s)
	if errors.Is(err, model.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not apply for license: %v", err))
	}

	err = svc.notifier.Send(c.Context(), notify.KindLicense,
		fmt.Sprintf("%s of %s applied for a license.", s.FullName(), acc.ClubName))
	if err != nil {
		log.Warnf("could not notify admin of license application: %v", err)
	}

	return svc.studentResponse(c, uid, s.ID)
}

// studentResponse returns the stored roster entry with the given ID.
func (svc *service) studentResponse(c *fiber.Ctx, uid, studentID string) error {
	acc, err := model.GetAccount(c.Context(), svc.store, uid)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}
	for i := range acc.Students {
		if acc.Students[i].ID == studentID {
			return c.JSON(acc.Students[i])
		}
	}
	return fiber.NewError(fiber.StatusNotFound, model.ErrStudentNotFound.Error())
}
