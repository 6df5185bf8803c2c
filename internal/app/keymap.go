package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "ctrl+c"
	KeyOpenVideo  = "ctrl+o"
	KeyCancel     = "esc"
	KeyEnter      = "enter"
	KeyScrollUp   = "pgup"
	KeyScrollDown = "pgdown"
	KeyLineUp     = "up"
	KeyLineDown   = "down"
	KeyTop        = "home"
	KeyBottom     = "end"
)
