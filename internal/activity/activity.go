package activity

// PageContent is a snapshot of the page the user is looking at, as captured
// by the extension's DOM extractor.
type PageContent struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Headers     []string `json:"headers,omitempty"`
	Navigation  []string `json:"navigation,omitempty"`
	MainContent []string `json:"mainContent,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

// Call types recorded on AICallLog.Type.
const (
	CallJudgement = "judgement"
	CallDebate    = "debate"
	CallOther     = "other"
)

// AICallLog records one completed model call. Entries are append-only.
type AICallLog struct {
	// Timestamp is when the call completed (see FormatTime)
	Timestamp string `json:"timestamp"`

	// Model is the provider's model identifier
	Model string `json:"model"`

	// Type is a free-form tag, normally one of the Call* constants
	Type string `json:"type"`

	// Prompt is the full text sent
	Prompt string `json:"prompt"`

	// Response is the full text received
	Response string `json:"response"`

	// InputTokens and OutputTokens are nil when the provider did not report usage
	InputTokens  *int64 `json:"inputTokens,omitempty"`
	OutputTokens *int64 `json:"outputTokens,omitempty"`

	// DurationSeconds is the wall-clock call duration
	DurationSeconds float64 `json:"durationSeconds"`
}

// TaskLog records a change of the active task. An empty Task means the user
// cleared their objective.
type TaskLog struct {
	Timestamp string `json:"timestamp"`
	Task      string `json:"task"`
}

// Debate message roles.
const (
	RoleAI   = "AI"
	RoleUser = "user"
)

// DebateMessage is one turn of a debate transcript.
type DebateMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage is the display form of a DebateMessage sent to the extension.
type ChatMessage struct {
	Role    string `json:"role"` // "assistant" or "user"
	Content string `json:"content"`
	HTML    string `json:"html,omitempty"`
}
