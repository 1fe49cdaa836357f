// ABOUTME: Dual-source playback engine package
// ABOUTME: Two decoders mixed into one stereo output with split or same routing
// Package dualdeck decodes two independent sources and mixes them into a
// single 16-bit stereo stream.
//
// In split mode slot A plays on the left channel and slot B on the right,
// or the reverse when swapped. In same mode the primary slot plays on both
// channels. Each slot has its own pause flag and software gain.
//
// When a slot reaches end of stream it pauses itself and a completion is
// delivered once on a separate goroutine, where the handler may safely
// call back into the engine.
//
// Example:
//
//	eng := dualdeck.New(dualdeck.Config{
//		OnCompletion: func(s dualdeck.Slot) { log.Printf("slot %s finished", s) },
//	})
//	defer eng.Close()
//
//	if err := eng.SetSource(dualdeck.SlotA, "left.flac"); err != nil {
//		return err
//	}
//	if err := eng.SetSource(dualdeck.SlotB, "right.mp3"); err != nil {
//		return err
//	}
//	if err := eng.ResumeAll(); err != nil {
//		return err
//	}
package dualdeck
