// Wire types for the assistant's two-phase response protocol
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AI response type discriminators.
const (
	AiResponseTypeMessage            = "MESSAGE"
	AiResponseTypeRequireChatContext = "REQUIRE_CHAT_CONTEXT"
	AiResponseTypeTaskCreation       = "TASK_CREATION"
)

// AiResponse is the decoded provider reply. The set of implementations is
// closed: AiMessage, AiRequireChatContext, AiTaskCreation. It is a wire-level
// type only; TASK_CREATION is converted into a task-creation side effect and
// never persisted as-is.
type AiResponse interface {
	aiResponse()
}

// AiMessage is a plain conversational answer.
type AiMessage struct {
	Content string
}

// AiRequireChatContext asks the orchestrator to re-prompt with recent channel
// history. Only valid in the first phase.
type AiRequireChatContext struct{}

// AiTaskCreation asks for a renovation task to be created. Fields are
// re-validated server-side before the task service is called; the provider is
// not trusted to have sanitised them.
type AiTaskCreation struct {
	Name        string
	Description string
	Date        string
	State       string
	Rooms       []string
}

func (AiMessage) aiResponse()            {}
func (AiRequireChatContext) aiResponse() {}
func (AiTaskCreation) aiResponse()       {}

// aiResponseEnvelope is the raw JSON shape shared by all three variants.
type aiResponseEnvelope struct {
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	State       string   `json:"state"`
	Rooms       []string `json:"rooms"`
}

// ParseAiResponse decodes the provider's reply into exactly one variant.
// Models occasionally wrap JSON in prose or code fences, so parsing starts at
// the first '{' and ends at the last '}'. Any other discriminator, or
// undecodable JSON, is an error; callers log and swallow it.
func ParseAiResponse(raw string) (AiResponse, error) {
	content := strings.TrimSpace(raw)
	if idx := strings.Index(content, "{"); idx >= 0 {
		content = content[idx:]
	}
	if idx := strings.LastIndex(content, "}"); idx >= 0 {
		content = content[:idx+1]
	}

	var env aiResponseEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}

	switch env.Type {
	case AiResponseTypeMessage:
		return AiMessage{Content: env.Content}, nil
	case AiResponseTypeRequireChatContext:
		return AiRequireChatContext{}, nil
	case AiResponseTypeTaskCreation:
		return AiTaskCreation{
			Name:        env.Name,
			Description: env.Description,
			Date:        env.Date,
			State:       env.State,
			Rooms:       env.Rooms,
		}, nil
	default:
		return nil, fmt.Errorf("unknown ai response type %q", env.Type)
	}
}
