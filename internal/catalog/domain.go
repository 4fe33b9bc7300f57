// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"

	"librarium/internal/fault"
)

// Book is a catalogued title with its available-copy count. Available never
// goes below zero: holds are taken with a conditional update and releases
// add exactly one copy back.
type Book struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Publisher string    `json:"publisher,omitempty"`
	Year      int       `json:"year,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	ISBN      string    `json:"isbn,omitempty"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBook carries the fields accepted when cataloguing a title.
type NewBook struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher,omitempty"`
	Year      int    `json:"year,omitempty"`
	Genre     string `json:"genre,omitempty"`
	ISBN      string `json:"isbn,omitempty"`
	Available int    `json:"available"`
}

func (n NewBook) Validate() error {
	if n.Title == "" {
		return fault.Validation("book title is required")
	}
	if n.Author == "" {
		return fault.Validation("book author is required")
	}
	if n.Available < 0 {
		return fault.Validation("available-copy count cannot be negative")
	}
	return nil
}

// BookUpdate lists the mutable fields of a book; nil means "keep current".
type BookUpdate struct {
	Title     *string `json:"title,omitempty"`
	Author    *string `json:"author,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
	Year      *int    `json:"year,omitempty"`
	Genre     *string `json:"genre,omitempty"`
	ISBN      *string `json:"isbn,omitempty"`
	Available *int    `json:"available,omitempty"`
}

func (u BookUpdate) Validate() error {
	if u.Title != nil && *u.Title == "" {
		return fault.Validation("book title cannot be blank")
	}
	if u.Author != nil && *u.Author == "" {
		return fault.Validation("book author cannot be blank")
	}
	if u.Available != nil && *u.Available < 0 {
		return fault.Validation("available-copy count cannot be negative")
	}
	return nil
}

// Apply merges the update into book.
func (u BookUpdate) Apply(book *Book) {
	if u.Title != nil {
		book.Title = *u.Title
	}
	if u.Author != nil {
		book.Author = *u.Author
	}
	if u.Publisher != nil {
		book.Publisher = *u.Publisher
	}
	if u.Year != nil {
		book.Year = *u.Year
	}
	if u.Genre != nil {
		book.Genre = *u.Genre
	}
	if u.ISBN != nil {
		book.ISBN = *u.ISBN
	}
	if u.Available != nil {
		book.Available = *u.Available
	}
}
