package model

import "time"

// Status is a book's place in the reading cycle.
//
// "For sale" is deliberately NOT a status. Earlier revisions of the product
// treated it as both a fifth status and a boolean flag; we model it only as
// the IsForSale flag on Book so a book keeps its reading status while listed.
type Status string

const (
	StatusToRead     Status = "to-read"
	StatusInProgress Status = "in-progress"
	StatusRead       Status = "read"
	StatusToBuy      Status = "to-buy" // wishlist: not owned yet
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToRead, StatusInProgress, StatusRead, StatusToBuy:
		return true
	}
	return false
}

// Owned reports whether a book in this status is physically owned by the
// user. Only owned books can be listed for sale.
func (s Status) Owned() bool {
	return s != StatusToBuy
}

// Book represents one tracked book. Every book belongs to exactly one user
// (UserID); all queries are scoped by owner so the struct itself carries no
// access-control logic.
//
// Rating is 0–5 where 0 means "not rated yet" — the UI shows five stars and
// never submits 0, so the zero value doubles as "unset".
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Cover     string    `json:"cover,omitempty"` // cover image URL, may be empty
	Status    Status    `json:"status"`
	Rating    int       `json:"rating"`
	IsForSale bool      `json:"isForSale"`
	Comments  []Comment `json:"comments"`
	UserID    string    `json:"-"` // owner; never exposed in responses
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is a note attached to a book. Comments have no life outside their
// parent book — they are created, edited, and deleted through the book's
// sub-resource operations only.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Name      string    `json:"name"` // author display name, denormalized at creation
	CreatedAt time.Time `json:"createdAt"`
}

// BookStats aggregates one user's collection for the statistics view.
type BookStats struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"byStatus"`
	ForSale       int            `json:"forSale"`
	AverageRating float64        `json:"averageRating"` // over rated books only; 0 if none rated
}
