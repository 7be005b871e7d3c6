package analyzer

// AnalysisRequest is the body accepted by the AnalyzeOneLog endpoint
type AnalysisRequest struct {
	Messages []Message `json:"messages"`
}

// Message represents a single message in the conversation
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock holds one piece of message text
type ContentBlock struct {
	Text string `json:"text"`
}

// NewRequest wraps text in a single user message.
func NewRequest(text string) AnalysisRequest {
	return AnalysisRequest{
		Messages: []Message{
			{
				Role:    "user",
				Content: []ContentBlock{{Text: text}},
			},
		},
	}
}
