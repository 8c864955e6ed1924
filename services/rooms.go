package services

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// RoomFabric is a set of named rooms with ordered fan-out. Rooms appear on
// first join and disappear when their last member leaves.
type RoomFabric struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	rooms  map[string]*room
	member map[*Client]map[string]struct{}
}

type room struct {
	mu      sync.Mutex
	name    string
	members map[*Client]struct{}
	dead    bool
}

func NewRoomFabric(name string, logger *slog.Logger) *RoomFabric {
	return &RoomFabric{
		name:   name,
		logger: logger,
		rooms:  make(map[string]*room),
		member: make(map[*Client]map[string]struct{}),
	}
}

func (f *RoomFabric) getOrCreate(name string) *room {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[name]
	if !ok {
		r = &room{name: name, members: make(map[*Client]struct{})}
		f.rooms[name] = r
	}
	return r
}

// Join adds c to the room. Joining twice is a no-op and closed clients are
// refused. It reports whether c was newly added.
func (f *RoomFabric) Join(c *Client, name string) bool {
	for {
		r := f.getOrCreate(name)
		r.mu.Lock()
		if r.dead {
			// emptied and collected while we waited
			r.mu.Unlock()
			continue
		}
		if c.Closed() {
			r.mu.Unlock()
			return false
		}
		if _, ok := r.members[c]; ok {
			r.mu.Unlock()
			return false
		}
		r.members[c] = struct{}{}
		f.mu.Lock()
		set, ok := f.member[c]
		if !ok {
			set = make(map[string]struct{})
			f.member[c] = set
		}
		set[name] = struct{}{}
		f.mu.Unlock()
		r.mu.Unlock()
		return true
	}
}

// Leave removes c from the room. It reports whether c was a member.
func (f *RoomFabric) Leave(c *Client, name string) bool {
	f.mu.Lock()
	r, ok := f.rooms[name]
	f.mu.Unlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	_, was := r.members[c]
	delete(r.members, c)
	empty := len(r.members) == 0 && !r.dead

	f.mu.Lock()
	if set, ok := f.member[c]; ok {
		delete(set, name)
		if len(set) == 0 {
			delete(f.member, c)
		}
	}
	if empty && f.rooms[name] == r {
		r.dead = true
		delete(f.rooms, name)
	}
	f.mu.Unlock()
	r.mu.Unlock()

	return was
}

// LeaveAll removes c from every room and returns the rooms it was in.
func (f *RoomFabric) LeaveAll(c *Client) []string {
	names := f.RoomsOf(c)
	for _, name := range names {
		f.Leave(c, name)
	}
	return names
}

// RoomsOf lists the rooms c is in, sorted.
func (f *RoomFabric) RoomsOf(c *Client) []string {
	f.mu.Lock()
	names := lo.Keys(f.member[c])
	f.mu.Unlock()
	sort.Strings(names)
	return names
}

func (f *RoomFabric) IsMember(c *Client, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.member[c][name]
	return ok
}

// Members returns a snapshot of the room's clients.
func (f *RoomFabric) Members(name string) []*Client {
	f.mu.Lock()
	r, ok := f.rooms[name]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.members)
}

func (f *RoomFabric) MemberCount(name string) int {
	f.mu.Lock()
	r, ok := f.rooms[name]
	f.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Rooms lists the rooms that currently have members.
func (f *RoomFabric) Rooms() []string {
	f.mu.Lock()
	names := lo.Keys(f.rooms)
	f.mu.Unlock()
	sort.Strings(names)
	return names
}

// Broadcast sends one event to every member except exclude. The room lock is
// held for the whole fan-out, so members observe a room's events in the order
// they were broadcast. Members whose buffers overflow are closed.
func (f *RoomFabric) Broadcast(name, eventType string, payload interface{}, exclude *Client) int {
	f.mu.Lock()
	r, ok := f.rooms[name]
	f.mu.Unlock()
	if !ok {
		return 0
	}

	data, err := encodeMessage(eventType, payload)
	if err != nil {
		f.logger.Error("failed to encode broadcast", "fabric", f.name, "room", name, "event", eventType, "error", err)
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sent := 0
	for c := range r.members {
		if c == exclude {
			continue
		}
		if c.Send(data) {
			sent++
		}
	}
	return sent
}
