package effects

import "testing"

func TestApplyPolicies(t *testing.T) {
	table := Table{
		0x11: {Policy: Direct, Type: PortaUp},
		0x15: {Policy: Split, Type: Extended, Sub: ExFineVolUp},
		0x1F: {Policy: Relocate},
	}

	t.Run("Direct", func(t *testing.T) {
		got := table.Apply(0x11, 0x42)
		if got.Type != PortaUp || got.Param != 0x42 || got.Volume != 0 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("Split", func(t *testing.T) {
		got := table.Apply(0x15, 0x03)
		if got.Type != Extended || got.Param != 0xA3 {
			t.Errorf("got type %#x param %#x, want 0xE / 0xA3", got.Type, got.Param)
		}
	})

	t.Run("Relocate", func(t *testing.T) {
		got := table.Apply(0x1F, 32)
		if got.Volume != 33 {
			t.Errorf("volume column = %d, want 33 (1+value)", got.Volume)
		}
		if got.Type != 0 || got.Param != 0 {
			t.Errorf("relocated effect should leave the slot empty, got %+v", got)
		}
	})

	t.Run("UnmappedPassesThrough", func(t *testing.T) {
		got := table.Apply(0x2A, 0x77)
		if got.Type != 0x2A || got.Param != 0x77 {
			t.Errorf("unmapped code must pass through, got %+v", got)
		}
	})
}
