package model

// ChatMessage is one session chat entry. Timestamp is Unix milliseconds.
type ChatMessage struct {
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
