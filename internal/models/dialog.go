package models

// Turn is one paired exchange: the user message and the bot answer.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
	Date int64  `json:"date"`
}

// Dialog is one conversation session. ChatMode and Model are snapshotted at
// creation time and do not follow later changes to the user's preferences.
type Dialog struct {
	Id        string
	UserId    int64
	ChatMode  string
	Model     string
	StartTime int64
	Turns     []Turn
}

// DialogMeta is dialog metadata without message bodies.
type DialogMeta struct {
	Id        string
	StartTime int64
	ChatMode  string
	Model     string
}
