// Database models for the renovation context consumed by the assistant
package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Renovation is the collaboration context channels belong to. CRUD around it
// lives in the main product; this subsystem reads it to authorise channel
// membership and to build the assistant's context view.
type Renovation struct {
	ID          int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string      `json:"name" gorm:"size:64;not null"`
	Description string      `json:"description,omitempty" gorm:"size:512"`
	OwnerID     int64       `json:"owner_id" gorm:"index;not null"`
	Owner       *User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Tags        StringArray `json:"tags,omitempty" gorm:"type:text"`
	Members     []User      `json:"members,omitempty" gorm:"many2many:renovation_members"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Renovation) TableName() string {
	return "renovations"
}

// Room is a named area of a renovation; tasks are scoped to rooms.
type Room struct {
	ID           int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	RenovationID int64  `json:"renovation_id" gorm:"index;not null"`
	Name         string `json:"name" gorm:"size:64;not null"`
}

func (Room) TableName() string {
	return "rooms"
}

// Task states.
const (
	TaskStateNotStarted = "NOT_STARTED"
	TaskStateInProgress = "IN_PROGRESS"
	TaskStateCompleted  = "COMPLETED"
	TaskStateBlocked    = "BLOCKED"
	TaskStateCancelled  = "CANCELLED"
)

// Task is a renovation work item. The assistant can create tasks as a side
// effect of a TASK_CREATION reply.
type Task struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	RenovationID int64      `json:"renovation_id" gorm:"index;not null"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Description  string     `json:"description,omitempty" gorm:"size:512"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	State        string     `json:"state" gorm:"size:20;default:'NOT_STARTED'"`
	Rooms        []Room     `json:"rooms,omitempty" gorm:"many2many:task_rooms"`
	Expenses     []Expense  `json:"expenses,omitempty" gorm:"foreignKey:TaskID"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// Expense is a spend recorded against a task; the per-category sums form the
// budget breakdown shown to the assistant.
type Expense struct {
	ID       int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskID   int64     `json:"task_id" gorm:"index;not null"`
	Name     string    `json:"name" gorm:"size:64;not null"`
	Category string    `json:"category" gorm:"size:32"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
}

func (Expense) TableName() string {
	return "expenses"
}

// StringArray is a []string stored as a JSON text column.
type StringArray []string

// Value implements driver.Valuer for database storage
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, a)
}
