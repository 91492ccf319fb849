/*
DESCRIPTION
  JSON Web Token claims helpers.

AUTHORS
  Tom Ashworth <tom@dojopal.app>

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

package auth

import (
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a token that failed parsing or
// signature verification, or that carried no claims.
var ErrInvalidToken = errors.New("invalid token")

// PutClaims serializes claims as an HS256-signed JWT.
func PutClaims(claims map[string]interface{}, secret []byte) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	s, err := tok.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}
	return s, nil
}

// GetClaims verifies an HS256-signed JWT and returns its claims.
// Registered time claims (exp, nbf, iat) are validated during
// parsing, so an expired token is reported as invalid here.
func GetClaims(tokStr string, secret []byte) (map[string]interface{}, error) {
	tok, err := jwt.Parse(tokStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
