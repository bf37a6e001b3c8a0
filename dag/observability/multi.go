package observability

// MultiHooks fans one event out to several Hooks. A panic from one
// delegate is recovered and swallowed so a broken hook cannot take down
// the engine or block its sibling hooks.
type MultiHooks struct {
	delegates []Hooks
}

// NewMultiHooks returns a MultiHooks fanning out to delegates in order.
func NewMultiHooks(delegates ...Hooks) *MultiHooks {
	return &MultiHooks{delegates: delegates}
}

// Emit implements Hooks.
func (m *MultiHooks) Emit(e Event) {
	for _, d := range m.delegates {
		func(d Hooks) {
			defer func() { _ = recover() }()
			d.Emit(e)
		}(d)
	}
}
