/*
AUTHORS
  Maya Clarke <maya@dojopal.app>

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

	"github.com/dojopal/cloud/auth"
	"github.com/dojopal/cloud/backend"
	"github.com/dojopal/cloud/datastore"
	"github.com/dojopal/cloud/model"
	"github.com/dojopal/cloud/notify"
	"github.com/dojopal/cloud/validate"
)

// fieldErrors renders a per-field validation error map as an
// unprocessable entity response.
func fieldErrors(c *fiber.Ctx, errs map[string]string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"fieldErrors": errs})
}

// identity resolves the request's cookie session to an
// authenticated identity, or returns an unauthorized fiber error.
func (svc *service) identity(c *fiber.Ctx) (*auth.Session, *auth.Identity, error) {
	sess, err := backend.GetIdentity(backend.NewFiberHandler(c))
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "not signed in")
	}
	ident, err := svc.auth.Identity(c.Context(), sess)
	if errors.Is(err, auth.ErrNoSession) {
		return nil, nil, fiber.NewError(fiber.StatusUnauthorized, "not signed in")
	} else if err != nil {
		return nil, nil, logAndReturnError(c, fmt.Sprintf("could not resolve identity: %v", err))
	}
	return sess, ident, nil
}

// authorizationCodeHandler checks the club authorization code which
// gates sign-up.
func (svc *service) authorizationCodeHandler(c *fiber.Ctx) error {
	var req struct {
		AuthorizationCode string `json:"authorizationCode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}
	if msg := validate.AuthorizationCode(req.AuthorizationCode, svc.signupCode); msg != validate.Valid {
		return logAndReturnError(c, msg, withStatus(fiber.StatusForbidden))
	}
	return c.JSON(fiber.Map{"valid": true})
}

// signupHandler registers a new account. The credential is created
// with the identity provider first; the profile record is a
// follow-up write, and the account remains pending until an
// administrator approves it.
func (svc *service) signupHandler(c *fiber.Ctx) error {
	var req struct {
		FirstName         string `json:"firstName" validate:"required"`
		LastName          string `json:"lastName" validate:"required"`
		EmailAddress      string `json:"emailAddress" validate:"required"`
		ClubName          string `json:"clubName" validate:"required"`
		Password          string `json:"password" validate:"required,strongpassword"`
		ConfirmPassword   string `json:"confirmPassword" validate:"required,eqfield=Password"`
		AuthorizationCode string `json:"authorizationCode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}

	if msg := validate.AuthorizationCode(req.AuthorizationCode, svc.signupCode); msg != validate.Valid {
		return logAndReturnError(c, msg, withStatus(fiber.StatusForbidden))
	}

	form := validate.SignUpForm{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		EmailAddress:    req.EmailAddress,
		ClubName:        req.ClubName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}

	ctx := c.Context()
	sess, err := svc.auth.SignUp(ctx, req.EmailAddress, req.Password)
	if errors.Is(err, auth.ErrEmailInUse) {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusConflict))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not sign up: %v", err))
	}

	acc := &model.Account{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		EmailAddress: req.EmailAddress,
		ClubName:     req.ClubName,
		Approved:     false,
	}
	// The credential and the profile are separate writes; a failure
	// here leaves a credential without a profile, surfaced to the
	// caller for retry.
	err = model.CreateAccount(ctx, svc.store, acc, sess.UID)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create account record: %v", err))
	}

	err = svc.notifier.Send(ctx, notify.KindSignup,
		fmt.Sprintf("%s (%s) of %s signed up and awaits approval.", acc.FullName(), acc.EmailAddress, acc.ClubName))
	if err != nil {
		log.Warnf("could not notify admin of signup: %v", err)
	}

	err = backend.PutIdentity(backend.NewFiberHandler(c), sess)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not store session: %v", err))
	}

	return c.Status(fiber.StatusCreated).JSON(acc)
}

// signinHandler authenticates an existing account.
func (svc *service) signinHandler(c *fiber.Ctx) error {
	var req struct {
		EmailAddress string `json:"emailAddress"`
		Password     string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}

	ctx := c.Context()
	sess, err := svc.auth.SignIn(ctx, req.EmailAddress, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusUnauthorized))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not sign in: %v", err))
	}

	acc, err := model.GetAccount(ctx, svc.store, sess.UID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "account record not found", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}

	err = backend.PutIdentity(backend.NewFiberHandler(c), sess)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not store session: %v", err))
	}

	return c.JSON(acc)
}

// signoutHandler signs the user out and clears the cookie session.
// It succeeds even without a session.
func (svc *service) signoutHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c)
	sess, err := backend.GetIdentity(h)
	if err == nil {
		err = svc.auth.SignOut(c.Context(), sess)
		if err != nil {
			log.Warnf("could not sign out: %v", err)
		}
	}
	err = backend.ClearIdentity(h)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not clear session: %v", err))
	}
	return c.JSON(fiber.Map{"signedOut": true})
}

// profileHandler returns the signed-in user's account profile,
// including its approval status.
func (svc *service) profileHandler(c *fiber.Ctx) error {
	_, ident, err := svc.identity(c)
	if err != nil {
		return err
	}
	acc, err := model.GetAccount(c.Context(), svc.store, ident.UID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "account record not found", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}
	return c.JSON(acc)
}

// accountSettingsHandler updates the account's name details, email
// address and password. Settings are only reachable once the account
// has been approved; pending accounts may only view their profile and
// sign out. An email change is propagated to both the identity
// provider and the account record; the two writes are independent and
// the record write follows the credential write.
func (svc *service) accountSettingsHandler(c *fiber.Ctx) error {
	var req struct {
		FirstName          string `json:"firstName"`
		LastName           string `json:"lastName"`
		ClubName           string `json:"clubName"`
		EmailAddress       string `json:"emailAddress"`
		CurrentPassword    string `json:"currentPassword" validate:"required_with=NewPassword"`
		NewPassword        string `json:"newPassword" validate:"omitempty,strongpassword"`
		ConfirmNewPassword string `json:"confirmNewPassword" validate:"required_with=NewPassword,eqfield=NewPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not parse request body")
	}

	sess, ident, err := svc.identity(c)
	if err != nil {
		return err
	}
	ctx := c.Context()

	acc, err := model.GetAccount(ctx, svc.store, ident.UID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "account record not found", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}
	if !acc.Approved {
		return fiber.NewError(fiber.StatusForbidden, "account pending approval")
	}

	newEmail := req.EmailAddress
	if newEmail == "" {
		newEmail = ident.Email
	}
	form := validate.AccountSettingsForm{
		CurrentEmail:       ident.Email,
		NewEmail:           newEmail,
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	}
	if svc.validator.Struct(&req) != nil || !form.Valid() {
		return fieldErrors(c, form.Errors())
	}

	if form.NewEmail != form.CurrentEmail {
		err = svc.auth.UpdateEmail(ctx, sess, form.NewEmail)
		if errors.Is(err, auth.ErrEmailInUse) {
			return logAndReturnError(c, err.Error(), withStatus(fiber.StatusConflict))
		} else if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not update email: %v", err))
		}
		err = model.UpdateAccountEmail(ctx, svc.store, ident.UID, form.NewEmail)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not update account email: %v", err))
		}
		err = backend.PutIdentity(backend.NewFiberHandler(c), sess)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not store session: %v", err))
		}
	}

	if form.NewPassword != "" {
		err = svc.auth.UpdatePassword(ctx, sess, req.CurrentPassword, form.NewPassword)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return logAndReturnError(c, err.Error(), withStatus(fiber.StatusUnauthorized))
		} else if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not update password: %v", err))
		}
	}

	acc, err = model.GetAccount(ctx, svc.store, ident.UID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "account record not found", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get account: %v", err))
	}
	changed := false
	if req.FirstName != "" && req.FirstName != acc.FirstName {
		acc.FirstName = req.FirstName
		changed = true
	}
	if req.LastName != "" && req.LastName != acc.LastName {
		acc.LastName = req.LastName
		changed = true
	}
	if req.ClubName != "" && req.ClubName != acc.ClubName {
		acc.ClubName = req.ClubName
		changed = true
	}
	if changed {
		err = model.PutAccount(ctx, svc.store, acc, ident.UID)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not update account: %v", err))
		}
	}

	return c.JSON(acc)
}
