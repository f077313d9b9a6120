package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Rohianon/chatcommerce/pkg/errors"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const phone = "08012345678"

func newTestManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, Config{Timeout: 5 * time.Minute, LockTimeout: time.Second}), store
}

func TestManager_GetAbsent(t *testing.T) {
	m, _ := newTestManager()

	sess, err := m.Get(context.Background(), phone)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess != nil {
		t.Errorf("Get() = %+v, want nil", sess)
	}
}

func TestManager_TransitionPersists(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess := m.CreateDefault(phone)
	next, err := m.Transition(ctx, sess, types.FlowAirtime, types.StateAirtimeNetwork, nil)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	got, err := m.Get(ctx, phone)
	if err != nil || got == nil {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if got.State != types.StateAirtimeNetwork || got.Flow != types.FlowAirtime {
		t.Errorf("stored session = %s/%s", got.Flow, got.State)
	}
	if sess.State != types.StateMainMenu {
		t.Error("Transition() should not modify its input")
	}
	if len(next.History) != 1 {
		t.Errorf("history = %d, want 1", len(next.History))
	}
}

func TestManager_TransitionRejectsForeignState(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	tests := []struct {
		name  string
		flow  string
		state string
	}{
		{"state from another flow", types.FlowAirtime, types.StateDataPlan},
		{"main menu inside a flow", types.FlowData, types.StateMainMenu},
		{"unknown flow", "bills", "bills_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Transition(ctx, m.CreateDefault(phone), tt.flow, tt.state, nil)
			if !apperrors.Is(err, apperrors.ErrInvalidTransition) {
				t.Errorf("Transition() error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestManager_ExpiredSessionIsAbsent(t *testing.T) {
	m, store := newTestManager()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	if _, err := m.Transition(ctx, m.CreateDefault(phone), types.FlowData, types.StateDataNetwork, nil); err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return now.Add(5 * time.Minute) }
	sess, err := m.Get(ctx, phone)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess != nil {
		t.Error("expired session should read as absent")
	}
	if store.Len() != 0 {
		t.Error("expired session should be deleted on read")
	}
}

func TestManager_Reset(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, _ := m.Transition(ctx, m.CreateDefault(phone), types.FlowAirtime, types.StateAirtimePhone, map[string]string{"network": "mtn"})

	reset, err := m.Reset(ctx, sess)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reset.State != types.StateMainMenu || reset.Flow != types.FlowNone || len(reset.Data) != 0 {
		t.Errorf("Reset() = %+v", reset)
	}
	if sess.Get("network") != "mtn" {
		t.Error("Reset() should not modify its input")
	}
}

func TestManager_LockSerializes(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, phone)
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
}

func TestManager_LockTimeout(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Config{LockTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	unlock, err := m.Lock(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	if _, err := m.Lock(ctx, phone); !apperrors.Is(err, apperrors.ErrSessionLocked) {
		t.Errorf("second Lock() error = %v, want ErrSessionLocked", err)
	}

	if other, err := m.Lock(ctx, "08099999999"); err != nil {
		t.Errorf("Lock() on another phone error = %v", err)
	} else {
		other()
	}
}

func TestMemoryStore_LockSlotsAreReleased(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	unlock, err := store.Lock(ctx, phone, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(waitCtx, phone, time.Second); err == nil {
		t.Fatal("Lock() on a held phone should time out")
	}
	if got := len(store.locks); got != 1 {
		t.Errorf("slots while held = %d, want 1", got)
	}

	unlock()
	unlock()
	if got := len(store.locks); got != 0 {
		t.Errorf("slots after unlock = %d, want 0", got)
	}

	for i := 0; i < 50; i++ {
		u, err := store.Lock(ctx, fmt.Sprintf("0801000%04d", i), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		u()
	}
	if got := len(store.locks); got != 0 {
		t.Errorf("slots after many phones = %d, want 0", got)
	}

	again, err := store.Lock(ctx, phone, time.Second)
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	again()
}

func TestMemoryStore_Reap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Put(ctx, types.NewSession("08011111111", now, time.Minute), time.Minute)
	store.Put(ctx, types.NewSession("08022222222", now, time.Hour), time.Hour)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	if n := store.Reap(); n != 1 {
		t.Errorf("Reap() = %d, want 1", n)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStartReaper(t *testing.T) {
	store := NewMemoryStore()

	if _, err := StartReaper("not a schedule", store); err == nil {
		t.Error("StartReaper() should reject an invalid schedule")
	}

	c, err := StartReaper("@every 1h", store)
	if err != nil {
		t.Fatalf("StartReaper() error = %v", err)
	}
	<-c.Stop().Done()
}
