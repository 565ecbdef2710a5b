package audiotarget

import "testing"

func TestParseWindowSourceID(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantOK  bool
	}{
		{"window:1337:0", 1337, true},
		{"screen:3:0", 0, false},
		{"window:not-a-number:0", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseWindowSourceID(c.in)
		if ok != c.wantOK {
			t.Errorf("ParseWindowSourceID(%q) ok = %v, want %v", c.in, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseWindowSourceID(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseTargetPID(t *testing.T) {
	cases := []struct {
		in     string
		want   uint32
		wantOK bool
	}{
		{"pid:4321", 4321, true},
		{"pid:abc", 0, false},
		{"4321", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseTargetPID(c.in)
		if ok != c.wantOK {
			t.Errorf("ParseTargetPID(%q) ok = %v, want %v", c.in, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseTargetPID(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDedupeByPIDFirstWriteWins(t *testing.T) {
	entries := []windowEntry{
		{pid: 100, title: "First"},
		{pid: 100, title: "Second"},
		{pid: 200, title: "Other"},
	}
	got := DedupeByPID(entries)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[100] != "First" {
		t.Errorf("got[100] = %q, want First", got[100])
	}
	if got[200] != "Other" {
		t.Errorf("got[200] = %q, want Other", got[200])
	}
}

func TestFormatTargetIDs(t *testing.T) {
	if got := FormatTargetID(4321); got != "pid:4321" {
		t.Errorf("FormatTargetID(4321) = %q", got)
	}
	if got := FormatExcludeTargetID(4321); got != "excl:pid:4321" {
		t.Errorf("FormatExcludeTargetID(4321) = %q", got)
	}
}
