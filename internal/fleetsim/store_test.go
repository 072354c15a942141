package fleetsim

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dreamware/fleetdash/internal/actions"
)

// TestMemoryStore tests the in-memory fleet
func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore()

		if ids := store.List(); len(ids) != 0 {
			t.Errorf("Expected empty store, got %d robots", len(ids))
		}

		_, err := store.Get("nonexistent")
		if !errors.Is(err, ErrRobotNotFound) {
			t.Errorf("Expected ErrRobotNotFound, got %v", err)
		}
	})

	t.Run("add and get robots", func(t *testing.T) {
		store := NewMemoryStore()
		robot := NewRobot("scout", true)

		if err := store.Add(robot); err != nil {
			t.Fatalf("Failed to add robot: %v", err)
		}

		got, err := store.Get(robot.UUID)
		if err != nil {
			t.Fatalf("Failed to get robot: %v", err)
		}
		if got.Name != "scout" || got.MAC != robot.MAC || !got.Online {
			t.Errorf("Unexpected robot %+v", got)
		}
	})

	t.Run("duplicate uuid is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		robot := NewRobot("scout", true)
		_ = store.Add(robot)

		if err := store.Add(robot); !errors.Is(err, ErrRobotExists) {
			t.Errorf("Expected ErrRobotExists, got %v", err)
		}
	})

	t.Run("list keeps registration order", func(t *testing.T) {
		store := NewMemoryStore()
		robots, err := Seed(store, 5)
		if err != nil {
			t.Fatalf("Seed failed: %v", err)
		}

		ids := store.List()
		for i, robot := range robots {
			if ids[i] != robot.UUID {
				t.Errorf("Position %d: expected %s, got %s", i, robot.UUID, ids[i])
			}
		}

		online := store.Online()
		if len(online) != 3 {
			t.Fatalf("Expected 3 online robots, got %d", len(online))
		}
		if online[0] != robots[0].UUID || online[1] != robots[2].UUID || online[2] != robots[4].UUID {
			t.Errorf("Unexpected online order %v", online)
		}
	})

	t.Run("remove robots", func(t *testing.T) {
		store := NewMemoryStore()
		robots, _ := Seed(store, 3)

		if err := store.Remove(robots[1].UUID); err != nil {
			t.Fatalf("Failed to remove robot: %v", err)
		}
		if ids := store.List(); len(ids) != 2 || ids[1] != robots[2].UUID {
			t.Errorf("Unexpected roster after remove: %v", ids)
		}

		// removing again is not an error
		if err := store.Remove(robots[1].UUID); err != nil {
			t.Errorf("Remove should be idempotent: %v", err)
		}
	})

	t.Run("rename and toggle online", func(t *testing.T) {
		store := NewMemoryStore()
		robot := NewRobot("scout", false)
		_ = store.Add(robot)

		if _, err := store.Network(robot.UUID); !errors.Is(err, ErrRobotOffline) {
			t.Errorf("Expected ErrRobotOffline, got %v", err)
		}

		if err := store.Rename(robot.UUID, "ranger"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if err := store.SetOnline(robot.UUID, true); err != nil {
			t.Fatalf("SetOnline failed: %v", err)
		}

		got, _ := store.Get(robot.UUID)
		if got.Name != "ranger" || !got.Online {
			t.Errorf("Unexpected robot %+v", got)
		}
		if _, err := store.Network(robot.UUID); err != nil {
			t.Errorf("Network failed for online robot: %v", err)
		}

		if err := store.Rename("missing", "x"); !errors.Is(err, ErrRobotNotFound) {
			t.Errorf("Expected ErrRobotNotFound, got %v", err)
		}
		if err := store.SetOnline("missing", true); !errors.Is(err, ErrRobotNotFound) {
			t.Errorf("Expected ErrRobotNotFound, got %v", err)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := NewMemoryStore()
		robot := NewRobot("scout", true)
		_ = store.Add(robot)

		got, _ := store.Get(robot.UUID)
		got.Network.Interfaces[0].Flags[0] = "mutated"
		got.Network.Interfaces[0].Addrs = nil

		again, _ := store.Get(robot.UUID)
		if again.Network.Interfaces[0].Flags[0] != "up" {
			t.Errorf("Stored flags were modified: %v", again.Network.Interfaces[0].Flags)
		}
		if len(again.Network.Interfaces[0].Addrs) == 0 {
			t.Error("Stored addresses were modified")
		}
	})
}

func TestNewRobot(t *testing.T) {
	robot := NewRobot("scout", true)

	if !actions.IsUUIDv4(robot.UUID) {
		t.Errorf("Expected a UUIDv4, got %s", robot.UUID)
	}
	if len(robot.MAC) != 17 || robot.MAC[:3] != "02:" {
		t.Errorf("Expected a locally administered MAC, got %s", robot.MAC)
	}
	if len(robot.Network.Interfaces) == 0 {
		t.Fatal("Expected an interface table")
	}
	for _, iface := range robot.Network.Interfaces {
		if iface.Flags == nil || iface.Addrs == nil {
			t.Errorf("Interface %s must carry non-nil flags and addrs", iface.Name)
		}
	}
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore()
	robots, _ := Seed(store, 4)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			robot := robots[i%len(robots)]
			_ = store.Rename(robot.UUID, fmt.Sprintf("robot-%d", i))
			_ = store.SetOnline(robot.UUID, i%3 == 0)
			_, _ = store.Get(robot.UUID)
			_ = store.Online()
			_ = store.Stats()
		}(i)
	}
	wg.Wait()

	if stats := store.Stats(); stats.Robots != 4 {
		t.Errorf("Expected 4 robots, got %d", stats.Robots)
	}
}

func TestStoreInterface(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	_, _ = Seed(store, 5)

	stats := store.Stats()
	if stats.Robots != 5 || stats.Online != 3 {
		t.Errorf("Expected 5 robots with 3 online, got %+v", stats)
	}
}
