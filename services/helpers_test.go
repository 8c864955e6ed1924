package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"quizchat/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient() *Client {
	return newClient(nil, nil, nil)
}

func newVerifiedClient(id, name string, role models.Role) *Client {
	return newClient(nil, nil, &models.Identity{
		ID:            id,
		DisplayName:   name,
		Role:          role,
		Authenticated: true,
	})
}

// bind gives a client an identity without going through presence.
func bind(c *Client, id, name string, authenticated bool) models.Identity {
	identity := models.Identity{ID: id, DisplayName: name, Role: models.RoleNormal, Authenticated: authenticated}
	c.setIdentity(identity)
	return identity
}

// expectEvent reads queued events until one of the wanted type arrives.
func expectEvent(t *testing.T, c *Client, eventType string) InboundMessage {
	t.Helper()
	return expectEventWithin(t, c, eventType, 3*time.Second)
}

func expectEventWithin(t *testing.T, c *Client, eventType string, timeout time.Duration) InboundMessage {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("client closed while waiting for %s", eventType)
			}
			var msg InboundMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == eventType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

// drainEvents returns everything queued for c without blocking.
func drainEvents(t *testing.T, c *Client) []InboundMessage {
	t.Helper()
	var out []InboundMessage
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg InboundMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func eventsOfType(msgs []InboundMessage, eventType string) []InboundMessage {
	var out []InboundMessage
	for _, m := range msgs {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, msg InboundMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

type fakeDirectory map[string]bool

func (d fakeDirectory) IsRegisteredName(_ context.Context, name string) (bool, error) {
	return d[strings.ToLower(name)], nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Option{},
		&models.ChatMessage{},
		&models.MessageReaction{},
		&models.ReadReceipt{},
		&models.Block{},
	))
	return db
}

// collectUntil returns every event up to and including the first one of the
// wanted type.
func collectUntil(t *testing.T, c *Client, eventType string) []InboundMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	var out []InboundMessage
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("client closed while waiting for %s", eventType)
			}
			var msg InboundMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
			if msg.Type == eventType {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}
