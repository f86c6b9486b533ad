package fsm

import (
	"fmt"
	"testing"
	"time"
)

func lifecycle() *StateMachine {
	sm := New(State("RUNNING"))
	sm.AddTransition("RUNNING", "EXITED", "exit", nil)
	sm.AddTransition("RUNNING", "TIMED_OUT", "timeout", nil)
	sm.AddTransition("TIMED_OUT", "TERMINATING", "terminate", nil)
	sm.AddTransition("TERMINATING", "TIMED_OUT_KILLED", "reap", nil)
	return sm
}

func TestStateMachine_ExitPath(t *testing.T) {
	sm := lifecycle()
	if err := sm.Fire("exit"); err != nil {
		t.Fatal(err)
	}
	if sm.Current() != "EXITED" {
		t.Errorf("Expected EXITED, got %s", sm.Current())
	}
	if sm.Can("timeout") {
		t.Error("timeout must not be valid after exit")
	}
}

func TestStateMachine_TimeoutPath(t *testing.T) {
	sm := lifecycle()
	for _, ev := range []Event{"timeout", "terminate", "reap"} {
		if err := sm.Fire(ev); err != nil {
			t.Fatalf("Fire(%s): %v", ev, err)
		}
	}
	if sm.Current() != "TIMED_OUT_KILLED" {
		t.Errorf("Expected TIMED_OUT_KILLED, got %s", sm.Current())
	}
}

func TestStateMachine_NestedFire(t *testing.T) {
	sm := New(State("initial"))

	sm.AddTransition(State("initial"), State("intermediate"), Event("first"), func(event Event, args ...interface{}) error {
		return sm.Fire(Event("second"))
	})
	sm.AddTransition(State("intermediate"), State("final"), Event("second"), nil)

	done := make(chan error, 1)
	go func() { done <- sm.Fire(Event("first")) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Fire failed: %v", err)
		}
		if sm.Current() != State("final") {
			t.Errorf("Expected state final, got %s", sm.Current())
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Deadlock detected: Fire did not return within 1 second")
	}
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	sm := lifecycle()
	if err := sm.Fire("reap"); err == nil {
		t.Fatal("Expected error for reap while RUNNING")
	}
	if sm.Current() != "RUNNING" {
		t.Errorf("Invalid event must not change state, got %s", sm.Current())
	}
}

func TestStateMachine_HandlerError(t *testing.T) {
	sm := New(State("A"))
	sm.AddTransition(State("A"), State("B"), Event("go"), func(event Event, args ...interface{}) error {
		return fmt.Errorf("handler failed")
	})

	err := sm.Fire(Event("go"))
	if err == nil || err.Error() != "handler failed" {
		t.Fatalf("Expected handler failed error, got %v", err)
	}
	if sm.Current() != State("B") {
		t.Errorf("Expected state B even if handler failed, got %s", sm.Current())
	}
}

func TestStateMachine_HandlerSeesNewState(t *testing.T) {
	sm := New(State("A"))
	var stateInHandler State
	var gotArgs []interface{}
	sm.AddTransition(State("A"), State("B"), Event("go"), func(event Event, args ...interface{}) error {
		stateInHandler = sm.Current()
		gotArgs = args
		return nil
	})

	sm.Fire(Event("go"), 42)
	if stateInHandler != State("B") {
		t.Errorf("Expected handler to see state B, saw %s", stateInHandler)
	}
	if len(gotArgs) != 1 || gotArgs[0] != 42 {
		t.Errorf("Expected args [42], got %v", gotArgs)
	}
}

// Personal.AI order the ending
