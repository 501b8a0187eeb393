package inmemdb

import (
	"context"
	"sync"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

type (
	// DB is an in-memory database for tests and local runs without Postgres.
	DB struct {
		user        *userTable
		enrollment  *enrollmentTable
		activity    *activityTable
		content     *contentTables
		convocation *scheduleTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	enrollmentTable struct {
		table map[int64]*enrollment.Enrollment
		pk    int64
		mutex sync.RWMutex
	}

	activityTable struct {
		table  map[int64]*activity.Activity
		images map[int64]*activity.Image
		pk     int64
		imgPK  int64
		mutex  sync.RWMutex
	}

	contentTables struct {
		partners   map[int64]*content.Partner
		members    map[int64]*content.TeamMember
		expertises map[string]int64
		formations map[int64]*content.Formation
		programmes map[int64]*content.Programme
		maquettes  map[int64]*content.Maquette
		pk         int64
		mutex      sync.RWMutex
	}

	scheduleTable struct {
		table map[int64]*convocation.Schedule
		pk    int64
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		enrollment: &enrollmentTable{table: make(map[int64]*enrollment.Enrollment)},
		activity: &activityTable{
			table:  make(map[int64]*activity.Activity),
			images: make(map[int64]*activity.Image),
		},
		content: &contentTables{
			partners:   make(map[int64]*content.Partner),
			members:    make(map[int64]*content.TeamMember),
			expertises: make(map[string]int64),
			formations: make(map[int64]*content.Formation),
			programmes: make(map[int64]*content.Programme),
			maquettes:  make(map[int64]*content.Maquette),
		},
		convocation: &scheduleTable{table: make(map[int64]*convocation.Schedule)},
	}
}

type transactor struct{}

// NewTransactor returns a Transactor that simply runs fn: the in-memory tables have no rollback.
func NewTransactor() core.Transactor {
	return &transactor{}
}

func (*transactor) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}
