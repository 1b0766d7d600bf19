package chat

import "time"

// Session identifies one interactive conversation. The id is minted once
// when the session is created and never changes afterwards.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
