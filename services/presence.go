package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"quizchat/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type RejectionKind string

const (
	NameReservedByAccount RejectionKind = "nameReservedByAccount"
	NameTakenOnline       RejectionKind = "nameTakenOnline"
	InvalidName           RejectionKind = "invalidName"
)

// Rejection is an expected, user-facing refusal of a register or rename.
type Rejection struct {
	Kind   RejectionKind
	Name   string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

// Event is the outbound event type the rejection is reported with.
func (r *Rejection) Event() string {
	switch r.Kind {
	case NameReservedByAccount:
		return EventNameReserved
	case NameTakenOnline:
		return EventNameTaken
	default:
		return EventInvalidName
	}
}

// PresenceRegistry binds identities to live connections, at most one
// connection per identity. The registry is process-local: uniqueness across
// several server processes would need a shared lock or registry, which this
// deployment does not have.
type PresenceRegistry struct {
	directory AccountDirectory
	maxName   int
	logger    *slog.Logger
	locks     *keyLocker

	mu       sync.RWMutex
	sessions map[string]*Client // identity id -> live connection
	names    map[string]string  // lowercased display name -> identity id
	onDetach []func(c *Client)

	presenceMu sync.Mutex
}

func NewPresenceRegistry(directory AccountDirectory, maxNameLength int, logger *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		directory: directory,
		maxName:   maxNameLength,
		logger:    logger,
		locks:     newKeyLocker(),
		sessions:  make(map[string]*Client),
		names:     make(map[string]string),
	}
}

// OnDetach registers a hook run whenever a connection stops being a session:
// on disconnect and when it is replaced by a newer connection.
func (p *PresenceRegistry) OnDetach(fn func(c *Client)) {
	p.mu.Lock()
	p.onDetach = append(p.onDetach, fn)
	p.mu.Unlock()
}

func (p *PresenceRegistry) detach(c *Client) {
	p.mu.RLock()
	hooks := p.onDetach
	p.mu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
}

func (p *PresenceRegistry) validateName(name string) *Rejection {
	if name == "" {
		return &Rejection{Kind: InvalidName, Name: name, Reason: "name must not be empty"}
	}
	if utf8.RuneCountInString(name) > p.maxName {
		return &Rejection{Kind: InvalidName, Name: name, Reason: fmt.Sprintf("name must be at most %d characters", p.maxName)}
	}
	return nil
}

// Register claims claimedName for the connection. Token-verified connections
// register as their account and may pick a display name that no other
// account owns; others get an anonymous identity that is kept
// across re-registers of the same connection, which makes re-register a
// rename. A previous connection of the same identity is told
// sessionReplaced and closed.
func (p *PresenceRegistry) Register(ctx context.Context, c *Client, claimedName string) (models.Identity, error) {
	name := strings.TrimSpace(claimedName)

	identity, ok := c.Verified()
	account := identity.DisplayName
	if ok {
		if name == "" {
			name = account
		}
	} else if current, bound := c.Identity(); bound {
		identity = current
	} else {
		identity = models.Identity{ID: "anon-" + uuid.NewString(), Role: models.RoleNormal}
	}
	if rej := p.validateName(name); rej != nil {
		return models.Identity{}, rej
	}
	identity.DisplayName = name

	unlock := p.locks.Lock(identity.ID)
	defer unlock()

	// An account may keep its own username; any other name that belongs to
	// an account is reserved, for verified connections too.
	if !identity.Authenticated || !strings.EqualFold(name, account) {
		registered, err := p.directory.IsRegisteredName(ctx, name)
		if err != nil {
			return models.Identity{}, err
		}
		if registered {
			return models.Identity{}, &Rejection{Kind: NameReservedByAccount, Name: name, Reason: "name belongs to a registered account"}
		}
	}

	p.mu.Lock()
	key := strings.ToLower(name)
	if holder, held := p.names[key]; held && holder != identity.ID {
		holderClient := p.sessions[holder]
		p.mu.Unlock()
		if !identity.Authenticated && holderClient != nil {
			if h, ok := holderClient.Identity(); ok && h.Authenticated {
				return models.Identity{}, &Rejection{Kind: NameReservedByAccount, Name: name, Reason: "name belongs to a registered account"}
			}
		}
		return models.Identity{}, &Rejection{Kind: NameTakenOnline, Name: name, Reason: "name is already in use"}
	}

	prev := p.sessions[identity.ID]
	if prev != nil {
		if old, ok := prev.Identity(); ok {
			if oldKey := strings.ToLower(old.DisplayName); p.names[oldKey] == identity.ID {
				delete(p.names, oldKey)
			}
		}
	}
	p.sessions[identity.ID] = c
	p.names[key] = identity.ID
	c.setIdentity(identity)
	p.mu.Unlock()

	if prev != nil && prev != c {
		prev.CloseWith(EventSessionReplaced, SessionReplacedPayload{Reason: "signed in from another connection"})
		p.detach(prev)
		p.logger.Info("session replaced", "identity", identity.ID, "old_client", prev.ID(), "new_client", c.ID())
	}

	c.Emit(EventRegistered, RegisteredPayload{Identity: identity})
	p.logger.Info("identity registered", "identity", identity.ID, "name", name, "authenticated", identity.Authenticated)
	p.broadcastPresence()
	return identity, nil
}

// UpdateDisplayName renames the identity's live session under the same rules
// as Register.
func (p *PresenceRegistry) UpdateDisplayName(ctx context.Context, identityID, newName string) (models.Identity, error) {
	c, ok := p.Lookup(identityID)
	if !ok {
		return models.Identity{}, ErrNotRegistered
	}
	return p.Register(ctx, c, newName)
}

// Unregister detaches the connection from every room and, if it is still the
// live session of its identity, marks the identity offline.
func (p *PresenceRegistry) Unregister(c *Client) {
	p.detach(c)

	identity, ok := c.Identity()
	if !ok {
		return
	}

	unlock := p.locks.Lock(identity.ID)
	removed := false
	p.mu.Lock()
	if p.sessions[identity.ID] == c {
		delete(p.sessions, identity.ID)
		if key := strings.ToLower(identity.DisplayName); p.names[key] == identity.ID {
			delete(p.names, key)
		}
		removed = true
	}
	p.mu.Unlock()
	unlock()

	if removed {
		p.logger.Info("identity offline", "identity", identity.ID)
		p.broadcastPresence()
	}
}

func (p *PresenceRegistry) Lookup(identityID string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.sessions[identityID]
	return c, ok
}

// DisplayName returns the current name of an online identity.
func (p *PresenceRegistry) DisplayName(identityID string) (string, bool) {
	c, ok := p.Lookup(identityID)
	if !ok {
		return "", false
	}
	identity, ok := c.Identity()
	if !ok {
		return "", false
	}
	return identity.DisplayName, true
}

func (p *PresenceRegistry) Online() []PresenceEntry {
	p.mu.RLock()
	entries := lo.MapToSlice(p.sessions, func(id string, c *Client) PresenceEntry {
		identity, _ := c.Identity()
		return PresenceEntry{ID: id, DisplayName: identity.DisplayName, Authenticated: identity.Authenticated}
	})
	p.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// broadcastPresence sends the online list to every session. Broadcasts are
// serialized so every connection sees the lists in the same order.
func (p *PresenceRegistry) broadcastPresence() {
	p.presenceMu.Lock()
	defer p.presenceMu.Unlock()

	online := p.Online()
	data, err := encodeMessage(EventPresenceUpdate, PresencePayload{Online: online})
	if err != nil {
		p.logger.Error("failed to encode presence", "error", err)
		return
	}

	p.mu.RLock()
	clients := lo.Values(p.sessions)
	p.mu.RUnlock()
	for _, c := range clients {
		c.Send(data)
	}
}
