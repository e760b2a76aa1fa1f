package config

import "testing"

func TestAddRecentFile(t *testing.T) {
	c := DefaultConfig()
	c.AddRecentFile("a.midi")
	c.AddRecentFile("b.midi")
	c.AddRecentFile("a.midi") // re-open moves to the front, no duplicate

	if len(c.RecentFiles) != 2 {
		t.Fatalf("recent list %v", c.RecentFiles)
	}
	if c.RecentFiles[0] != "a.midi" || c.RecentFiles[1] != "b.midi" {
		t.Errorf("recent list %v", c.RecentFiles)
	}
}

func TestAddRecentFileCaps(t *testing.T) {
	c := DefaultConfig()
	for i := 0; i < maxRecentFiles+5; i++ {
		c.AddRecentFile(string(rune('a'+i)) + ".midi")
	}
	if len(c.RecentFiles) != maxRecentFiles {
		t.Errorf("recent list grew to %d", len(c.RecentFiles))
	}
}
