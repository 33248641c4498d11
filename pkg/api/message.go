package api

// MessageLevel is the severity of a message attached to a run.
type MessageLevel string

const (
	MessageInfo    MessageLevel = "INFO"
	MessageWarning MessageLevel = "WARNING"
	MessageError   MessageLevel = "ERROR"
)

// Message is one (level, text) record in a run's message log.
type Message struct {
	Level MessageLevel
	Line  string
}

func InfoMessage(line string) Message {
	return Message{Level: MessageInfo, Line: line}
}

func WarningMessage(line string) Message {
	return Message{Level: MessageWarning, Line: line}
}

func ErrorMessage(line string) Message {
	return Message{Level: MessageError, Line: line}
}
