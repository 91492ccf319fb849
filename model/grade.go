/*
DESCRIPTION
  Datastore grade type and grading-history operations.

AUTHORS
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
	"time"

	"github.com/google/uuid"

	"github.com/dojopal/cloud/datastore"
)

// Ranks lists the grade taxonomy in ascending order: kyu grades from
// 10th down to 1st, then dan grades from 1st up to 10th.
var Ranks = []string{
	"10th Kyu", "9th Kyu", "8th Kyu", "7th Kyu", "6th Kyu",
	"5th Kyu", "4th Kyu", "3rd Kyu", "2nd Kyu", "1st Kyu",
	"1st Dan", "2nd Dan", "3rd Dan", "4th Dan", "5th Dan",
	"6th Dan", "7th Dan", "8th Dan", "9th Dan", "10th Dan",
}

// Grade represents one rank-passing record in a student's grading
// history. Grades are append-only; the app never edits or deletes
// them.
type Grade struct {
	ID         string    `firestore:"id" json:"id"`
	DatePassed string    `firestore:"datePassed" json:"datePassed"`
	Examiner   string    `firestore:"examiner" json:"examiner"`
	Grade      string    `firestore:"grade" json:"grade"`
	GradeID    string    `firestore:"gradeId" json:"gradeId"`
	CreatedAt  time.Time `firestore:"createdAt" json:"createdAt"`
}

// Order returns the grade's rank from 1 (10th Kyu) to 20 (10th Dan).
// The match is exact and case sensitive; an unrecognized grade name
// returns 0.
func (g *Grade) Order() int {
	for i, r := range Ranks {
		if g.Grade == r {
			return i + 1
		}
	}
	return 0
}

// AddGrade appends a grade to the grading history of the student with
// the given ID, via a whole-aggregate read-modify-write. The grade is
// assigned an ID and creation time if it has none.
func AddGrade(ctx context.Context, store datastore.Store, accountID, studentID string, g *Grade) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	acc, err := GetAccount(ctx, store, accountID)
	if err != nil {
		return err
	}
	i := acc.findStudent(studentID)
	if i == -1 {
		return ErrStudentNotFound
	}
	acc.Students[i].GradingHistory = append(acc.Students[i].GradingHistory, *g)
	return PutAccount(ctx, store, acc, accountID)
}
