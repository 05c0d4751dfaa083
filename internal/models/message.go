package models

import "time"

// ChatMessage is an inbound chat line. It is never persisted.
type ChatMessage struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Answer is the outcome of one question-answering run.
type Answer struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Reply    string          `json:"reply"`
	Context  []*SearchResult `json:"context"`
}
