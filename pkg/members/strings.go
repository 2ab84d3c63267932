package members

// Strings supplies the localized labels the engine attaches to rows and menu
// actions. Lookup is synchronous; implementations must not call back into the
// controller.
type Strings interface {
	Connecting() string
	Invited() string
	Speaking() string
	Listening() string
	Mute() string
	Unmute() string
	Remove() string
}

// EnglishStrings is the default Strings implementation.
type EnglishStrings struct{}

func (EnglishStrings) Connecting() string { return "connecting..." }
func (EnglishStrings) Invited() string    { return "invited" }
func (EnglishStrings) Speaking() string   { return "speaking" }
func (EnglishStrings) Listening() string  { return "listening" }
func (EnglishStrings) Mute() string       { return "Mute" }
func (EnglishStrings) Unmute() string     { return "Unmute" }
func (EnglishStrings) Remove() string     { return "Remove" }
