package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewEnrollment returns a complete, normalized enrollment; seed keeps the unique fields apart.
func NewEnrollment(userID, lastName, firstName, seed, formation string) enrollment.Enrollment {
	e := enrollment.Enrollment{
		UserID:            userID,
		LastName:          lastName,
		FirstName:         firstName,
		Sex:               "M",
		BirthDate:         time.Date(2000, 1, 15, 0, 0, 0, 0, time.UTC),
		BirthPlace:        "Abidjan",
		Email:             seed + "@test.ci",
		EmailConfirmation: seed + "@test.ci",
		Phone:             "+2250701020304",
		CMU:               "CMU-" + seed,
		CNI:               "CNI-" + seed,
		BacSeries:         "C",
		BacYear:           2018,
		BacMention:        "AB",
		BacNumber:         "BAC-" + seed,
		BacSchool:         "Lycée Classique",
		LicenceYear:       2021,
		Formation:         formation,
		CreatedAt:         time.Now().UTC(),
	}
	e.Normalize()
	return e
}

func CreateEnrollment(t *testing.T, repo enrollment.Repository, e enrollment.Enrollment) enrollment.Enrollment {
	t.Helper()

	e, err := repo.CreateEnrollment(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return e
}
