package model

import "time"

// EntryType enumerates the kinds of media an Entry can describe.
type EntryType string

const (
	EntryTypeMovie  EntryType = "movie"
	EntryTypeTVShow EntryType = "tv_show"
)

// Entry represents one record of a user's collection as stored in the
// `entries` table.  UserID is the owner and is the only authorization
// predicate: every query filters on it.  Nullable columns are pointers so
// that null survives a round trip through JSON.
//
// Fields:
//
//	ID          – primary key, assigned on insert.
//	UserID      – owner; set once from the authenticated caller.
//	Title       – display title.
//	Type        – movie or tv_show.
//	Genre       – free-form genre label.
//	ReleaseYear – year of first release.
//	Rating      – personal rating between 0 and 10.
//	Description – free-form notes.
//	ImageURL    – poster URL (nullable, opaque).
//	Director    – director or showrunner.
//	Budget      – production budget (nullable).
//	Duration    – runtime in minutes.
//	Location    – where it was watched (nullable).
//	CreatedAt   – insert timestamp (UTC).
//	UpdatedAt   – last update timestamp (UTC).
type Entry struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	UserID      uint64    `gorm:"not null;index:idx_entries_user_created,priority:1" json:"userId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Type        EntryType `gorm:"size:16;not null" json:"type"`
	Genre       string    `gorm:"size:100;not null" json:"genre"`
	ReleaseYear int       `gorm:"not null" json:"releaseYear"`
	Rating      float64   `gorm:"not null" json:"rating"`
	Description string    `gorm:"type:text;not null" json:"description"`
	ImageURL    *string   `gorm:"size:2048" json:"imageUrl"`
	Director    string    `gorm:"size:255;not null" json:"director"`
	Budget      *float64  `json:"budget"`
	Duration    int       `gorm:"not null" json:"duration"`
	Location    *string   `gorm:"size:255" json:"location"`
	CreatedAt   time.Time `gorm:"index:idx_entries_user_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EntryFields carries the user-editable columns of an Entry.  Create and
// Update both take the full set; fields left nil are stored as null.
type EntryFields struct {
	Title       string
	Type        EntryType
	Genre       string
	ReleaseYear int
	Rating      float64
	Description string
	ImageURL    *string
	Director    string
	Budget      *float64
	Duration    int
	Location    *string
}

// Apply copies f onto e, leaving identity, owner and timestamps untouched.
func (f EntryFields) Apply(e *Entry) {
	e.Title = f.Title
	e.Type = f.Type
	e.Genre = f.Genre
	e.ReleaseYear = f.ReleaseYear
	e.Rating = f.Rating
	e.Description = f.Description
	e.ImageURL = f.ImageURL
	e.Director = f.Director
	e.Budget = f.Budget
	e.Duration = f.Duration
	e.Location = f.Location
}
