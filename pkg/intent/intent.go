package intent

// Intent is the classified purpose of a user question. It is a closed
// set: every dispatch site switches exhaustively over these values so
// that adding an intent forces each branch to be revisited.
type Intent string

const (
	// IntentInfo asks for information: statistics, counts, textual lists.
	IntentInfo Intent = "INFO"

	// IntentDownload asks to retrieve report files as an archive.
	IntentDownload Intent = "DOWNLOAD"

	// IntentChitchat is small talk that must never reach the data layer.
	IntentChitchat Intent = "CHITCHAT"
)

// Parse maps a raw label to an Intent, falling back to INFO for
// anything the classifier was not supposed to produce.
func Parse(label string) Intent {
	switch Intent(label) {
	case IntentInfo, IntentDownload, IntentChitchat:
		return Intent(label)
	default:
		return IntentInfo
	}
}

func (i Intent) String() string {
	return string(i)
}
