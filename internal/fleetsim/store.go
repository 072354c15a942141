package fleetsim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dreamware/fleetdash/internal/api"
)

var (
	// ErrRobotNotFound is returned when no robot has the requested UUID.
	ErrRobotNotFound = errors.New("robot not found")

	// ErrRobotExists is returned by Add for a UUID that is already registered.
	ErrRobotExists = errors.New("robot already registered")

	// ErrRobotOffline is returned when reading live data from an offline robot.
	ErrRobotOffline = errors.New("robot offline")
)

// Robot is one simulated robot.
type Robot struct {
	UUID    string
	MAC     string
	Name    string
	Online  bool
	Network api.NetworkSnapshot
}

// Detail returns the identity record served for r.
func (r Robot) Detail() api.RobotDetail {
	return api.RobotDetail{UUID: r.UUID, MAC: r.MAC, Name: r.Name}
}

// Store holds the simulated fleet.
// All implementations must be safe for concurrent access.
type Store interface {
	// Add registers a robot. Returns ErrRobotExists for a duplicate UUID.
	Add(robot Robot) error

	// Get returns a copy of the robot with the given UUID.
	Get(robotUUID string) (Robot, error)

	// Remove deletes a robot. No error if it doesn't exist.
	Remove(robotUUID string) error

	// List returns every robot UUID in registration order.
	List() []string

	// Online returns the UUIDs of online robots in registration order.
	Online() []string

	// Rename sets a robot's name.
	Rename(robotUUID, name string) error

	// SetOnline marks a robot online or offline.
	SetOnline(robotUUID string, online bool) error

	// Network returns the interface table of an online robot.
	Network(robotUUID string) (api.NetworkSnapshot, error)

	// Stats counts the fleet.
	Stats() StoreStats
}

// StoreStats counts the fleet.
type StoreStats struct {
	Robots int `json:"robots"`
	Online int `json:"online"`
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	robots map[string]*Robot
	order  []string
}

// NewMemoryStore creates an empty fleet.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{robots: make(map[string]*Robot)}
}

// Add stores a copy of robot at the end of the roster.
func (m *MemoryStore) Add(robot Robot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.robots[robot.UUID]; exists {
		return fmt.Errorf("%w: %s", ErrRobotExists, robot.UUID)
	}
	stored := cloneRobot(robot)
	m.robots[robot.UUID] = &stored
	m.order = append(m.order, robot.UUID)
	return nil
}

// Get returns a deep copy so callers cannot modify the stored robot.
func (m *MemoryStore) Get(robotUUID string) (Robot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	robot, ok := m.robots[robotUUID]
	if !ok {
		return Robot{}, ErrRobotNotFound
	}
	return cloneRobot(*robot), nil
}

// Remove deletes a robot and its roster slot.
func (m *MemoryStore) Remove(robotUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.robots, robotUUID)
	if i := slices.Index(m.order, robotUUID); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return nil
}

// List returns a copy of the roster.
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(make([]string, 0, len(m.order)), m.order...)
}

// Online returns the online subset of the roster, in roster order.
func (m *MemoryStore) Online() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	online := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if m.robots[id].Online {
			online = append(online, id)
		}
	}
	return online
}

// Rename sets a robot's name.
func (m *MemoryStore) Rename(robotUUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	robot, ok := m.robots[robotUUID]
	if !ok {
		return ErrRobotNotFound
	}
	robot.Name = name
	return nil
}

// SetOnline flips a robot's liveness and stamps its network table when it comes online.
func (m *MemoryStore) SetOnline(robotUUID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	robot, ok := m.robots[robotUUID]
	if !ok {
		return ErrRobotNotFound
	}
	robot.Online = online
	if online {
		robot.Network.LastUpdated = time.Now().UTC()
	}
	return nil
}

// Network returns an online robot's interface table.
func (m *MemoryStore) Network(robotUUID string) (api.NetworkSnapshot, error) {
	robot, err := m.Get(robotUUID)
	if err != nil {
		return api.NetworkSnapshot{}, err
	}
	if !robot.Online {
		return api.NetworkSnapshot{}, ErrRobotOffline
	}
	return robot.Network, nil
}

// Stats counts all robots and the online ones.
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := StoreStats{Robots: len(m.order)}
	for _, robot := range m.robots {
		if robot.Online {
			stats.Online++
		}
	}
	return stats
}

// NewRobot returns a robot with a fresh UUIDv4, a locally administered MAC
// derived from it and a typical interface table.
func NewRobot(name string, online bool) Robot {
	id := uuid.New()
	mac := fmt.Sprintf("02:%02x:%02x:%02x:%02x:%02x", id[11], id[12], id[13], id[14], id[15])
	host := int(id[15])%250 + 2

	return Robot{
		UUID:   id.String(),
		MAC:    mac,
		Name:   name,
		Online: online,
		Network: api.NetworkSnapshot{
			LastUpdated: time.Now().UTC().Truncate(time.Second),
			Interfaces: []api.NetworkInterface{
				{
					Index:        1,
					MTU:          65536,
					Name:         "lo",
					HardwareAddr: "",
					Flags:        []string{"up", "loopback", "running"},
					Addrs:        []api.InterfaceAddr{{Addr: "127.0.0.1/8"}, {Addr: "::1/128"}},
				},
				{
					Index:        2,
					MTU:          1500,
					Name:         "wlan0",
					HardwareAddr: mac,
					Flags:        []string{"up", "broadcast", "multicast", "running"},
					Addrs:        []api.InterfaceAddr{{Addr: fmt.Sprintf("10.42.0.%d/24", host)}},
				},
			},
		},
	}
}

// Seed adds n generated robots named robot-01, robot-02 and so on. Every
// other robot starts offline.
func Seed(store Store, n int) ([]Robot, error) {
	robots := make([]Robot, 0, n)
	for i := 0; i < n; i++ {
		robot := NewRobot(fmt.Sprintf("robot-%02d", i+1), i%2 == 0)
		if err := store.Add(robot); err != nil {
			return robots, err
		}
		robots = append(robots, robot)
	}
	return robots, nil
}

func cloneRobot(r Robot) Robot {
	out := r
	out.Network.Interfaces = make([]api.NetworkInterface, len(r.Network.Interfaces))
	for i, iface := range r.Network.Interfaces {
		iface.Flags = append(make([]string, 0, len(iface.Flags)), iface.Flags...)
		iface.Addrs = append(make([]api.InterfaceAddr, 0, len(iface.Addrs)), iface.Addrs...)
		out.Network.Interfaces[i] = iface
	}
	return out
}
