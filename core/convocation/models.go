package convocation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/toure-cloud/institutdeveloppement/core"
)

// Schedule is the entrance exam of a formation.
type Schedule struct {
	ID        int64     `json:"id"`
	Formation string    `json:"formation"`
	ExamDate  time.Time `json:"date_examen"`
	ExamTime  string    `json:"heure_examen"` // HH:MM
	Location  string    `json:"lieu_examen"`
	Room      string    `json:"salle"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type ScheduleForm struct {
	Formation string `json:"formation" validate:"required,notblank,max=100"`
	ExamDate  string `json:"date_examen" validate:"required,datetime=2006-01-02"`
	ExamTime  string `json:"heure_examen" validate:"required,datetime=15:04"`
	Location  string `json:"lieu_examen" validate:"required,notblank,max=200"`
	Room      string `json:"salle" validate:"max=50"`
}

func (sf *ScheduleForm) Validate(validate *validator.Validate) error {
	sf.Formation = core.CleanString(sf.Formation)
	sf.ExamDate = core.CleanString(sf.ExamDate)
	sf.ExamTime = core.CleanString(sf.ExamTime)
	sf.Location = core.CleanString(sf.Location)
	sf.Room = core.CleanString(sf.Room)
	return validate.Struct(sf)
}

func (sf ScheduleForm) schedule() Schedule {
	date, _ := time.Parse("2006-01-02", sf.ExamDate)
	return Schedule{
		Formation: sf.Formation,
		ExamDate:  date,
		ExamTime:  sf.ExamTime,
		Location:  sf.Location,
		Room:      sf.Room,
	}
}

// Document is a generated PDF.
type Document struct {
	Filename string
	Content  []byte
}
