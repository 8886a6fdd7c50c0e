// AI orchestrator - two-phase prompt protocol against the chat model
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/event"
	"github.com/renohub/renohub/pkg/models"
	"github.com/renohub/renohub/pkg/utils"
	"gorm.io/gorm"
)

// AssistantHandle is the mention token that invokes the assistant.
const AssistantHandle = "@RenoBot"

// aiTimeout bounds one orchestration end to end (up to two provider
// round-trips plus the context read).
const aiTimeout = 2 * time.Minute

// timestampLayouts render "2025-09-26T13:45 (Friday, September 26, 2025 at 1:45 PM)".
const (
	timestampISOLayout   = "2006-01-02T15:04"
	timestampHumanLayout = "Monday, January 2, 2006 at 3:04 PM"
)

const phase1PromptTemplate = `You are RenoBot, the assistant of a home-renovation planning app. You answer questions about the renovation below and can create tasks.

%s

The current date and time is %s.

Reply with a single JSON object and nothing else, in exactly one of these shapes:
- {"type": "MESSAGE", "content": "<your answer>"} for a conversational answer.
- {"type": "REQUIRE_CHAT_CONTEXT"} if you need the recent channel conversation to answer.
- {"type": "TASK_CREATION", "name": "...", "description": "...", "date": "YYYY-MM-DD", "state": "NOT_STARTED|IN_PROGRESS|COMPLETED|BLOCKED|CANCELLED", "rooms": ["..."]} to create a task the user asked for. Room names must come from the renovation's room list.`

const phase2PromptTemplate = `You are RenoBot, the assistant of a home-renovation planning app. You answer questions about the renovation below.

%s

Recent channel conversation, oldest first:
%s

The current date and time is %s.

Reply with a single JSON object and nothing else, shaped {"type": "MESSAGE", "content": "<your answer>"}.`

// AiService runs the assistant pipeline: trigger detection, context view
// assembly, the two-phase prompt protocol, response parsing and the
// task-creation side effect. Orchestration is asynchronous relative to the
// send path; every failure resolves to "no reply" and is never surfaced to
// the chat UI.
type AiService struct {
	db             *gorm.DB
	chatModel      model.BaseChatModel
	chatService    *ChatService
	channelService *ChannelService
	taskService    *TaskService
	assistantID    int64
	contextWindow  int
	logger         *slog.Logger
}

// NewAiService creates the orchestrator. A nil chatModel disables the
// assistant; chat keeps working without it.
func NewAiService(gdb *gorm.DB, chatModel model.BaseChatModel, chatService *ChatService, channelService *ChannelService, taskService *TaskService, assistantID int64, contextWindow int) *AiService {
	return &AiService{
		db:             gdb,
		chatModel:      chatModel,
		chatService:    chatService,
		channelService: channelService,
		taskService:    taskService,
		assistantID:    assistantID,
		contextWindow:  contextWindow,
		logger:         utils.GetLogger(),
	}
}

// Enabled reports whether a chat model is configured.
func (s *AiService) Enabled() bool {
	return s.chatModel != nil
}

// ShouldTrigger reports whether a saved message invokes the assistant:
// the content carries the mention token and the sender has not opted out.
// The assistant never triggers on its own messages.
func (s *AiService) ShouldTrigger(msg *db.Message) bool {
	if !s.Enabled() || msg.IsAi {
		return false
	}
	if msg.Sender != nil && (msg.Sender.AiOptOut || msg.Sender.IsAssistant) {
		return false
	}
	return strings.Contains(msg.Content, AssistantHandle)
}

// Trigger dispatches one orchestration to a background goroutine and returns
// a channel that yields the published reply, if any, then closes. The caller
// must not block the send path on it; handlers drain it in a goroutine, tests
// receive from it directly.
func (s *AiService) Trigger(channel *db.Channel, msg *db.Message) <-chan *models.OutgoingMessage {
	result := make(chan *models.OutgoingMessage, 1)

	go func() {
		defer close(result)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("AI orchestration panicked", "channelID", channel.ID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()

		reply, err := s.orchestrate(ctx, channel, msg)
		if err != nil {
			s.logger.Warn("AI orchestration resolved to no reply",
				"channelID", channel.ID, "messageID", msg.ID, "error", err)
			return
		}
		if reply != nil {
			result <- reply
		}
	}()

	return result
}

// orchestrate runs phase 1 against the provider and follows the protocol to a
// terminal variant. The context-aware second phase may not itself request
// more context; its prompt already embeds the history, and anything but a
// MESSAGE reply is treated as failure.
func (s *AiService) orchestrate(ctx context.Context, channel *db.Channel, msg *db.Message) (*models.OutgoingMessage, error) {
	view, err := s.buildRenovationView(channel.RenovationID)
	if err != nil {
		return nil, fmt.Errorf("build renovation view: %w", err)
	}

	now := formatTimestamp(time.Now())
	resp, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(phase1PromptTemplate, view, now)),
		schema.UserMessage(msg.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("phase 1 generation: %w", err)
	}

	parsed, err := models.ParseAiResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("phase 1 response: %w", err)
	}

	switch v := parsed.(type) {
	case models.AiMessage:
		return s.publishReply(channel, v.Content)

	case models.AiRequireChatContext:
		return s.orchestrateWithContext(ctx, channel, msg, view)

	case models.AiTaskCreation:
		task, err := s.taskService.CreateTask(channel.RenovationID, v.Name, v.Description, v.Date, v.State, v.Rooms)
		if err != nil {
			// Degrade to silence: no broken task, no broken reply.
			return nil, fmt.Errorf("task creation rejected: %w", err)
		}
		confirmation := fmt.Sprintf("I've created the task %q", task.Name)
		if task.DueDate != nil {
			confirmation += fmt.Sprintf(", due %s", task.DueDate.Format(TaskDateLayout))
		}
		confirmation += "."
		return s.publishReply(channel, confirmation)

	default:
		return nil, errors.New("unhandled ai response variant")
	}
}

// orchestrateWithContext is the second phase: re-prompt with recent channel
// history embedded.
func (s *AiService) orchestrateWithContext(ctx context.Context, channel *db.Channel, msg *db.Message, view string) (*models.OutgoingMessage, error) {
	history, err := s.chatService.RecentForContext(channel.ID, s.contextWindow)
	if err != nil {
		return nil, fmt.Errorf("fetch chat context: %w", err)
	}

	resp, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(phase2PromptTemplate, view, renderHistory(history), formatTimestamp(time.Now()))),
		schema.UserMessage(msg.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("phase 2 generation: %w", err)
	}

	parsed, err := models.ParseAiResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("phase 2 response: %w", err)
	}

	reply, ok := parsed.(models.AiMessage)
	if !ok {
		return nil, errors.New("phase 2 reply is not a MESSAGE variant")
	}
	return s.publishReply(channel, reply.Content)
}

// publishReply persists the assistant's message in the channel and fans it
// out to the channel topic. The assistant can reply in any channel it was
// invoked in, membership notwithstanding, so this bypasses SaveMessage's
// sender checks.
func (s *AiService) publishReply(channel *db.Channel, content string) (*models.OutgoingMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("assistant produced an empty reply")
	}

	var assistant db.User
	if err := s.db.First(&assistant, "id = ?", s.assistantID).Error; err != nil {
		return nil, err
	}

	reply := &db.Message{
		ChannelID: channel.ID,
		SenderID:  s.assistantID,
		Content:   content,
		SentAt:    time.Now(),
		IsAi:      true,
	}
	if err := s.db.Create(reply).Error; err != nil {
		return nil, fmt.Errorf("save assistant reply: %w", err)
	}
	reply.Sender = &assistant

	outgoing := s.chatService.ToOutgoing(reply)
	event.Emit(event.ChatMessageEvent{ChannelID: channel.ID, Message: outgoing})
	return &outgoing, nil
}

// buildRenovationView renders the structured renovation summary injected into
// both system prompts: name, description, owner, tags, rooms, members
// excluding the owner, tasks with their expenses, and the per-category budget
// breakdown.
func (s *AiService) buildRenovationView(renovationID int64) (string, error) {
	var renovation db.Renovation
	err := s.db.
		Preload("Owner").
		Preload("Members").
		First(&renovation, "id = ?", renovationID).Error
	if err != nil {
		return "", err
	}

	var rooms []db.Room
	if err := s.db.Where("renovation_id = ?", renovationID).Order("id ASC").Find(&rooms).Error; err != nil {
		return "", err
	}

	var tasks []db.Task
	err = s.db.
		Preload("Rooms").
		Preload("Expenses").
		Where("renovation_id = ?", renovationID).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Renovation: %s\n", renovation.Name)
	if renovation.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", renovation.Description)
	}
	if renovation.Owner != nil {
		fmt.Fprintf(&b, "Owner: %s\n", renovation.Owner.DisplayName())
	}
	if len(renovation.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(renovation.Tags, ", "))
	}

	if len(rooms) > 0 {
		names := make([]string, 0, len(rooms))
		for _, r := range rooms {
			names = append(names, r.Name)
		}
		fmt.Fprintf(&b, "Rooms: %s\n", strings.Join(names, ", "))
	}

	members := make([]string, 0, len(renovation.Members))
	for i := range renovation.Members {
		m := &renovation.Members[i]
		if m.ID == renovation.OwnerID {
			continue
		}
		members = append(members, m.DisplayName())
	}
	if len(members) > 0 {
		fmt.Fprintf(&b, "Members: %s\n", strings.Join(members, ", "))
	}

	budget := make(map[string]float64)
	if len(tasks) > 0 {
		b.WriteString("Tasks:\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "- %s [%s]", t.Name, t.State)
			if t.DueDate != nil {
				fmt.Fprintf(&b, " due %s", t.DueDate.Format(TaskDateLayout))
			}
			if len(t.Rooms) > 0 {
				names := make([]string, 0, len(t.Rooms))
				for _, r := range t.Rooms {
					names = append(names, r.Name)
				}
				fmt.Fprintf(&b, " (rooms: %s)", strings.Join(names, ", "))
			}
			b.WriteString("\n")
			for _, e := range t.Expenses {
				category := e.Category
				if category == "" {
					category = "uncategorised"
				}
				budget[category] += e.Amount
				fmt.Fprintf(&b, "  - expense: %s %.2f (%s)\n", e.Name, e.Amount, category)
			}
		}
	}
	if len(budget) > 0 {
		categories := make([]string, 0, len(budget))
		for category := range budget {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		b.WriteString("Budget breakdown:\n")
		for _, category := range categories {
			fmt.Fprintf(&b, "- %s: %.2f\n", category, budget[category])
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// renderHistory formats the context window as (sender, content, timestamp)
// lines, oldest first.
func renderHistory(msgs []db.Message) string {
	if len(msgs) == 0 {
		return "(no messages)"
	}
	var b strings.Builder
	for i := range msgs {
		m := &msgs[i]
		sender := "unknown"
		if m.Sender != nil {
			sender = m.Sender.DisplayName()
		}
		fmt.Fprintf(&b, "(%s, %s, %s)\n", sender, m.Content, formatTimestamp(m.SentAt))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatTimestamp renders the ISO literal followed by the human-readable
// parenthetical both prompts use.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Format(timestampISOLayout), t.Format(timestampHumanLayout))
}
