package tasks

// CreateTaskRequest represents a request to create a task. Reward is a
// decimal token amount, e.g. "1.5".
type CreateTaskRequest struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Reward           string `json:"reward"`
	TimeLimitSeconds uint32 `json:"timeLimitSeconds"`
	TemplateID       string `json:"templateId"`
	TemplateData     string `json:"templateData"`
	Capability       string `json:"capability"`
}

// RejectTaskRequest carries the reason sent back to the manager
type RejectTaskRequest struct {
	Reason string `json:"reason"`
}

// CompleteTaskRequest carries the task result
type CompleteTaskRequest struct {
	Result string `json:"result"`
}
