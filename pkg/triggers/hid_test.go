//go:build linux

package triggers

import (
	"testing"

	"github.com/holoplot/go-evdev"
)

func TestIsTriggerEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   evdev.InputEvent
		want bool
	}{
		{
			name: "key down of the trigger key fires",
			ev:   evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_T, Value: 1},
			want: true,
		},
		{
			name: "key up is ignored",
			ev:   evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_T, Value: 0},
			want: false,
		},
		{
			name: "autorepeat is ignored",
			ev:   evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_T, Value: 2},
			want: false,
		},
		{
			name: "other keys are ignored",
			ev:   evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 1},
			want: false,
		},
		{
			name: "non-key events are ignored",
			ev:   evdev.InputEvent{Type: evdev.EV_SYN, Code: 0, Value: 1},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTriggerEvent(&tt.ev, evdev.KEY_T); got != tt.want {
				t.Errorf("Expected %v for %s, got %v", tt.want, tt.name, got)
			}
		})
	}
}
