package models

// Button is an inline action attached to a message. Exactly one of
// CallbackData and URL is set.
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// Message is a rendered outbound message; Text is HTML.
type Message struct {
	Text    string
	Buttons [][]Button
}

func TextMessage(text string) Message { return Message{Text: text} }
