// Shared fixtures for the service tests. Each test gets its own in-memory
// sqlite database so tests stay independent and parallelisable.
package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/renohub/renohub/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := db.Open(dsn)
	require.NoError(t, err)
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, first, last string) *db.User {
	t.Helper()
	u := &db.User{FirstName: first, LastName: last}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func seedAssistant(t *testing.T, gdb *gorm.DB) *db.User {
	t.Helper()
	u, err := db.EnsureAssistantUser(gdb)
	require.NoError(t, err)
	return u
}

// seedRenovation creates a renovation owned by owner with the extra members
// attached to the member set.
func seedRenovation(t *testing.T, gdb *gorm.DB, owner *db.User, members ...*db.User) *db.Renovation {
	t.Helper()
	r := &db.Renovation{Name: "Maple St house", OwnerID: owner.ID}
	for _, m := range members {
		r.Members = append(r.Members, *m)
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}

// seedChannel creates a channel in the renovation with the given members.
func seedChannel(t *testing.T, gdb *gorm.DB, renovation *db.Renovation, name string, members ...*db.User) *db.Channel {
	t.Helper()
	ch := &db.Channel{Name: name, RenovationID: renovation.ID}
	for _, m := range members {
		ch.Members = append(ch.Members, *m)
	}
	require.NoError(t, gdb.Create(ch).Error)
	return ch
}

// seedMessage inserts a message directly so history tests control SentAt
// exactly.
func seedMessage(t *testing.T, gdb *gorm.DB, channelID, senderID int64, content string, sentAt time.Time) *db.Message {
	t.Helper()
	m := &db.Message{ChannelID: channelID, SenderID: senderID, Content: content, SentAt: sentAt}
	require.NoError(t, gdb.Create(m).Error)
	return m
}

func newTestChatService(gdb *gorm.DB) *ChatService {
	return NewChatService(gdb, NewChannelService(gdb), 50, 6, 5)
}
