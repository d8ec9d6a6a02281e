package dummydb

import (
	"sync"

	"github.com/trezcool/hagwon/core/intake"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
)

type (
	DB struct {
		user        *userTable
		student     *studentTable
		application *applicationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student

		// availability rows; availSeq mimics the serial PK
		avail    map[int64]*student.AvailabilityEntry
		availSeq int64
	}

	applicationTable struct {
		sync.RWMutex
		table []*intake.Application // insertion order
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		student: &studentTable{
			table: make(map[string]*student.Student),
			avail: make(map[int64]*student.AvailabilityEntry),
		},
		application: &applicationTable{},
	}
	return db, nil
}
