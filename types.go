package threadloom

import "github.com/threadloom/threadloom/gateway"

// Response is the outcome of processing one user message: the stored
// assistant reply plus the token accounting for the call.
type Response struct {
	MessageID string        `json:"message_id"`
	ThreadID  string        `json:"thread_id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Model     string        `json:"model"`
	Tokens    int           `json:"tokens"`
	Usage     gateway.Usage `json:"usage"`
}
