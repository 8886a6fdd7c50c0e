package service

import (
	"strings"
	"testing"

	"github.com/renohub/renohub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskFixture(t *testing.T) (*TaskService, *db.Renovation) {
	t.Helper()
	gdb := newTestDB(t)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)
	require.NoError(t, gdb.Create(&db.Room{RenovationID: renovation.ID, Name: "Kitchen"}).Error)
	require.NoError(t, gdb.Create(&db.Room{RenovationID: renovation.ID, Name: "Bathroom"}).Error)
	return NewTaskService(gdb), renovation
}

func TestCreateTaskResolvesRoomsCaseInsensitively(t *testing.T) {
	svc, renovation := taskFixture(t)

	task, err := svc.CreateTask(renovation.ID, "Order tiles", "30x60, matte", "2026-09-15",
		db.TaskStateNotStarted, []string{"kitchen", "BATHROOM"})
	require.NoError(t, err)

	assert.Equal(t, "Order tiles", task.Name)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-09-15", task.DueDate.Format(TaskDateLayout))
	require.Len(t, task.Rooms, 2)
}

func TestCreateTaskUnknownRoomFailsWholeCreation(t *testing.T) {
	svc, renovation := taskFixture(t)

	_, err := svc.CreateTask(renovation.ID, "Order tiles", "", "",
		db.TaskStateNotStarted, []string{"Kitchen", "Garage"})
	assert.ErrorIs(t, err, ErrUnknownRoom)

	var count int64
	require.NoError(t, svc.db.Model(&db.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateTaskRejectsModelProvidedGarbage(t *testing.T) {
	svc, renovation := taskFixture(t)

	cases := []struct {
		name        string
		taskName    string
		description string
		date        string
		state       string
	}{
		{"empty name", "  ", "", "", db.TaskStateNotStarted},
		{"name too long", strings.Repeat("a", 65), "", "", db.TaskStateNotStarted},
		{"bad character", "rm -rf <everything>", "", "", db.TaskStateNotStarted},
		{"description too long", "ok", strings.Repeat("a", 513), "", db.TaskStateNotStarted},
		{"bad date", "ok", "", "next tuesday", db.TaskStateNotStarted},
		{"bad state", "ok", "", "", "DONE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(renovation.ID, tc.taskName, tc.description, tc.date, tc.state, nil)
			assert.ErrorIs(t, err, ErrInvalidTask)
		})
	}
}

func TestCreateTaskWithoutDateOrRooms(t *testing.T) {
	svc, renovation := taskFixture(t)

	task, err := svc.CreateTask(renovation.ID, "Pick paint colour", "", "", db.TaskStateInProgress, nil)
	require.NoError(t, err)
	assert.Nil(t, task.DueDate)
	assert.Empty(t, task.Rooms)
	assert.Equal(t, db.TaskStateInProgress, task.State)
}
