package models

import "time"

type Exchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"askedAt"`
}

type Conversation struct {
	ID        string     `json:"id"`
	Exchanges []Exchange `json:"exchanges"`
}

// SourceRef is the compact descriptor of a hit used to answer a question.
type SourceRef struct {
	Kind       ElementKind `json:"kind"`
	Name       string      `json:"name"`
	ClassID    string      `json:"classId"`
	Similarity float64     `json:"similarity"`
}

type ChatAnswer struct {
	Answer         string      `json:"answer"`
	Sources        []SourceRef `json:"sources"`
	ConversationID string      `json:"conversationId"`
}
