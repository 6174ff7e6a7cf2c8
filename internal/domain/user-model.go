package domain

import "time"

// UserID is the Telegram user id. In private chats it doubles as the chat id.
type UserID int64

type User struct {
	ID           UserID
	FirstName    string
	LastName     *string
	Username     string
	LanguageCode *string
	JoinDate     time.Time
}
