package websocket

import (
	"sort"
	"sync"

	"codesync-backend/internal/dto"
)

type room struct {
	id      string
	members []Connection
}

func (r *room) index(connID string) int {
	for i, c := range r.members {
		if c.ID() == connID {
			return i
		}
	}
	return -1
}

func (r *room) without(connID string) []Connection {
	out := make([]Connection, 0, len(r.members))
	for _, c := range r.members {
		if c.ID() != connID {
			out = append(out, c)
		}
	}
	return out
}

// Departure describes one room a leaving connection was removed from.
type Departure struct {
	RoomID      string
	DisplayName string
	Remaining   []Connection
	Purged      bool
}

// Registry maps room identifiers to their members in join order. A room exists
// only while it has at least one member; the last leave purges it.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	conns       map[string]Connection
	names       map[string]string
	memberships map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*room),
		conns:       make(map[string]Connection),
		names:       make(map[string]string),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds conn to roomID and returns the roster and member list computed
// under the same lock. Joining a room twice does not duplicate the entry;
// added reports whether this call changed membership.
func (r *Registry) Join(roomID string, conn Connection, displayName string) (roster []dto.Participant, members []Connection, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if _, ok := r.names[id]; !ok {
		r.names[id] = displayName
	}
	r.conns[id] = conn

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID}
		r.rooms[roomID] = rm
	}
	if rm.index(id) < 0 {
		rm.members = append(rm.members, conn)
		added = true
	}

	if r.memberships[id] == nil {
		r.memberships[id] = make(map[string]struct{})
	}
	r.memberships[id][roomID] = struct{}{}

	members = make([]Connection, len(rm.members))
	copy(members, rm.members)
	return r.rosterLocked(rm), members, added
}

// Leave removes connID from every room it belongs to and forgets it. Calling
// it for an unknown connection returns nil.
func (r *Registry) Leave(connID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.memberships[connID]
	if !ok {
		delete(r.conns, connID)
		delete(r.names, connID)
		return nil
	}

	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	name := r.names[connID]
	departures := make([]Departure, 0, len(ids))
	for _, roomID := range ids {
		rm, ok := r.rooms[roomID]
		if !ok || rm.index(connID) < 0 {
			continue
		}
		rm.members = rm.without(connID)
		d := Departure{RoomID: roomID, DisplayName: name}
		if len(rm.members) == 0 {
			delete(r.rooms, roomID)
			d.Purged = true
		} else {
			d.Remaining = make([]Connection, len(rm.members))
			copy(d.Remaining, rm.members)
		}
		departures = append(departures, d)
	}

	delete(r.memberships, connID)
	delete(r.conns, connID)
	delete(r.names, connID)
	return departures
}

func (r *Registry) Members(roomID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Connection, len(rm.members))
	copy(out, rm.members)
	return out
}

func (r *Registry) Roster(roomID string) []dto.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return []dto.Participant{}
	}
	return r.rosterLocked(rm)
}

func (r *Registry) rosterLocked(rm *room) []dto.Participant {
	roster := make([]dto.Participant, 0, len(rm.members))
	for _, c := range rm.members {
		roster = append(roster, dto.Participant{
			ConnectionID: c.ID(),
			DisplayName:  r.names[c.ID()],
		})
	}
	return roster
}

func (r *Registry) IsMember(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.memberships[connID][roomID]
	return ok
}

// Lookup finds a connection that has joined at least one room.
func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

func (r *Registry) SharesRoom(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for roomID := range r.memberships[a] {
		if _, ok := r.memberships[b][roomID]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) DisplayName(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[connID]
}

func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		out = append(out, RoomInfo{ID: id, Members: len(rm.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Connections: len(r.memberships)}
}
