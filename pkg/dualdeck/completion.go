// ABOUTME: Completion dispatcher delivering end-of-stream notifications
// ABOUTME: Runs the callback off the mixer goroutine so listeners may call back in
package dualdeck

func (e *Engine) dispatch() {
	for s := range e.completions {
		e.deliver(s)
	}
}

func (e *Engine) deliver(s Slot) {
	if e.cfg.OnCompletion == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("slot", s).Errorf("Completion handler panicked: %v", r)
		}
	}()
	e.cfg.OnCompletion(s)
}
