package providers

import (
	"context"

	"github.com/chaicafe/modelgate/internal/shared/models"
)

// Family identifies a class of backend completion service sharing a
// request/response shape.
type Family string

const (
	FamilyLocal      Family = "local"
	FamilyOpenAI     Family = "openai"
	FamilyGoogle     Family = "google"
	FamilyOpenRouter Family = "openrouter"
)

// History roles as stored by the chat orchestrator. Each backend maps
// these to its own role vocabulary.
const (
	RoleUser      = "user"
	RoleCharacter = "character"
)

// Message is one turn of rolling history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemContext carries the pieces assembled into the system block,
// in the order they are concatenated.
type SystemContext struct {
	Instruction     string
	Description     string
	Personality     string
	Scenario        string
	ExampleExchange string
}

// Request is a normalized completion request, independent of the
// provider family that will serve it.
type Request struct {
	Model   string
	Prompt  string
	System  SystemContext
	History []Message
}

// Result is a normalized completion response.
type Result struct {
	Content string
	Usage   models.Usage
}

// Backend is implemented by each provider-family adapter.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Result, error)
	Family() Family
}
