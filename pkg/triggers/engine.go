package triggers

import "context"

// EngineTrigger adapts an in-process detection callback to the trigger
// monitor contract. Vendor engines that spot the keyword themselves (and
// variants driven purely over USB) call Fire from their callback; the
// detector's Wait then returns as if an external pin had toggled.
//
// Fires arriving while a previous one is still being serviced coalesce into
// a single pending fire.
type EngineTrigger struct {
	fires chan struct{}
}

func NewEngineTrigger() *EngineTrigger {
	return &EngineTrigger{
		fires: make(chan struct{}, 1),
	}
}

// Fire signals one detection. Safe to call from any goroutine; never blocks.
func (t *EngineTrigger) Fire() {
	select {
	case t.fires <- struct{}{}:
	default:
	}
}

func (t *EngineTrigger) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.fires:
		return nil
	}
}

func (t *EngineTrigger) Name() string {
	return "engine"
}

func (t *EngineTrigger) Close() error {
	return nil
}
