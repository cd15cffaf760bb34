package version

import "testing"

func TestString(t *testing.T) {
	origV, origSHA, origBT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = origV, origSHA, origBT })

	Version, GitSHA, BuildTime = "1.2.0", "0123456789abcdef", "2026-10-01T00:00:00Z"
	if got, want := String(), "1.2.0 (0123456, built 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	Version, GitSHA, BuildTime = "dev", "unknown", "unknown"
	if got, want := String(), "dev (unknown, built unknown)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
