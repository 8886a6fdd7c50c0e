// Task creation collaborator used by the assistant's TASK_CREATION side effect
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrInvalidTask = errors.New("invalid task")
	ErrUnknownRoom = errors.New("room does not belong to the renovation")
)

const (
	MaxTaskNameLength        = 64
	MaxTaskDescriptionLength = 512
)

// TaskDateLayout is the date format the assistant is instructed to emit.
const TaskDateLayout = "2006-01-02"

var taskStates = map[string]bool{
	db.TaskStateNotStarted: true,
	db.TaskStateInProgress: true,
	db.TaskStateCompleted:  true,
	db.TaskStateBlocked:    true,
	db.TaskStateCancelled:  true,
}

// TaskService creates renovation tasks. The assistant delegates field
// sanitisation to the prompt contract, but everything is re-validated here;
// model output is never trusted.
type TaskService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

func validateTaskText(field, value string, max int) error {
	trimmed := strings.TrimSpace(value)
	if field == "name" && trimmed == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTask)
	}
	if len([]rune(trimmed)) > max {
		return fmt.Errorf("%w: %s longer than %d characters", ErrInvalidTask, field, max)
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			strings.ContainsRune("-_.,'!?()&/:;", r) {
			continue
		}
		return fmt.Errorf("%w: %s contains character %q", ErrInvalidTask, field, r)
	}
	return nil
}

// CreateTask validates and creates a task scoped to the named rooms.
// Room names must all exist in the renovation; an unknown room fails the
// whole creation.
func (s *TaskService) CreateTask(renovationID int64, name, description, date, state string, roomNames []string) (*db.Task, error) {
	if err := validateTaskText("name", name, MaxTaskNameLength); err != nil {
		return nil, err
	}
	if err := validateTaskText("description", description, MaxTaskDescriptionLength); err != nil {
		return nil, err
	}
	if !taskStates[state] {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidTask, state)
	}

	var dueDate *time.Time
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse(TaskDateLayout, strings.TrimSpace(date))
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrInvalidTask, date)
		}
		dueDate = &parsed
	}

	rooms, err := s.resolveRooms(renovationID, roomNames)
	if err != nil {
		return nil, err
	}

	task := &db.Task{
		RenovationID: renovationID,
		Name:         strings.TrimSpace(name),
		Description:  strings.TrimSpace(description),
		DueDate:      dueDate,
		State:        state,
		Rooms:        rooms,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("Task created", "renovationID", renovationID, "taskID", task.ID, "name", task.Name)
	return task, nil
}

// resolveRooms maps room names to room rows, case-insensitively.
func (s *TaskService) resolveRooms(renovationID int64, names []string) ([]db.Room, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var all []db.Room
	if err := s.db.Where("renovation_id = ?", renovationID).Find(&all).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]db.Room, len(all))
	for _, r := range all {
		byName[strings.ToLower(r.Name)] = r
	}

	rooms := make([]db.Room, 0, len(names))
	for _, name := range names {
		room, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRoom, name)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
