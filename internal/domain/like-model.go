package domain

import "time"

// Like is pending interest of From toward To. It is deleted when a match is
// consumed or when To reacts to it in the liked-me queue.
type Like struct {
	ID        string
	From      UserID
	To        UserID
	Message   *string
	CreatedAt time.Time
}

// View records that From has already reacted to To. Views are never deleted.
type View struct {
	ID        string
	From      UserID
	To        UserID
	Liked     bool
	CreatedAt time.Time
}
