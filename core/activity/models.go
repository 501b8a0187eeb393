package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/toure-cloud/institutdeveloppement/core"
)

type Category string

const (
	CategoryNature    Category = "nature"
	CategoryCulture   Category = "culture"
	CategoryAdventure Category = "aventure"
	CategoryEducation Category = "education"
	CategoryLeisure   Category = "loisir"

	shortDescriptionLen = 100
)

var categoryLabels = map[Category]string{
	CategoryNature:    "Nature et Environnement",
	CategoryCulture:   "Culture et Patrimoine",
	CategoryAdventure: "Aventure et Exploration",
	CategoryEducation: "Éducation et Recherche",
	CategoryLeisure:   "Loisirs et Détente",
}

// Display returns the French label of c, or c itself when unknown.
func (c Category) Display() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

type Activity struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Date        *time.Time `json:"date"`
	Location    string     `json:"location"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
	Images      []Image    `json:"images"`
}

func (a Activity) ShortDescription() string {
	return core.Truncate(a.Description, shortDescriptionLen, "...")
}

type Image struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	Path       string    `json:"-"`
	URL        string    `json:"url"`
	Caption    string    `json:"caption"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"` // UTC
}

// ActivityForm is used both to create and to update an activity.
type ActivityForm struct {
	Title       string   `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description string   `json:"description" form:"description" validate:"required,notblank"`
	Category    Category `json:"category" form:"category" validate:"required,oneof=nature culture aventure education loisir"`
	Date        string   `json:"date" form:"date" validate:"omitempty,datetime=2006-01-02"`
	Location    string   `json:"location" form:"location" validate:"max=200"`
	Caption     string   `json:"caption" form:"caption" validate:"max=200"`
}

func (af *ActivityForm) Validate(validate *validator.Validate) error {
	af.Title = core.CleanString(af.Title)
	af.Description = core.CleanString(af.Description)
	af.Location = core.CleanString(af.Location)
	af.Caption = core.CleanString(af.Caption)
	af.Date = core.CleanString(af.Date)
	return validate.Struct(af)
}

func (af ActivityForm) date() *time.Time {
	if af.Date == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", af.Date)
	if err != nil {
		return nil
	}
	return &d
}

// apply copies the form onto a.
func (af ActivityForm) apply(a *Activity) {
	a.Title = af.Title
	a.Description = af.Description
	a.Category = af.Category
	a.Date = af.date()
	a.Location = af.Location
}
