// Package commander defines the transport abstraction the bot loop
// consumes: an update source plus a plain-text reply sink.
package commander

// Button is one inline-keyboard button. Data comes back as the text of
// a synthetic update when the user taps it.
type Button struct {
	Label string
	Data  string
}

// Commander is the messaging-platform abstraction used by the bot.
type Commander interface {
	GetUpdates(offset int64, timeout int) ([]Update, error)
	SendMessage(chatID int64, text string) error
	SendMenu(chatID int64, text string, buttons []Button) error
}

// Update represents an incoming platform event.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a source message.
type Message struct {
	Chat Chat    `json:"chat"`
	Text *string `json:"text,omitempty"`
	Date int64   `json:"date"`
}

// Chat identifies a conversation; its ID doubles as the stable user
// identity the session registry is keyed on.
type Chat struct {
	ID int64 `json:"id"`
}
