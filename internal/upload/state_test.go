package upload

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestState(t *testing.T) *StateDB {
	t.Helper()
	state, err := OpenStateDB(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

// TestStateRoundTrip verifies a submission is found only with matching size and hash.
func TestStateRoundTrip(t *testing.T) {
	state := openTestState(t)

	if err := state.MarkSubmitted("week1.txt", 120, "abc", "log-1"); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		size int64
		hash string
		want bool
	}{
		{"week1.txt", 120, "abc", true},
		{"week1.txt", 121, "abc", false},
		{"week1.txt", 120, "def", false},
		{"week2.txt", 120, "abc", false},
	}
	for _, tc := range cases {
		got, err := state.IsSubmitted(tc.path, tc.size, tc.hash)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("IsSubmitted(%s, %d, %s) = %v, want %v", tc.path, tc.size, tc.hash, got, tc.want)
		}
	}
}

// TestStateReplace verifies a changed file replaces its previous record.
func TestStateReplace(t *testing.T) {
	state := openTestState(t)

	if err := state.MarkSubmitted("plan.md", 10, "h1", "log-1"); err != nil {
		t.Fatal(err)
	}
	if err := state.MarkSubmitted("plan.md", 12, "h2", "log-2"); err != nil {
		t.Fatal(err)
	}

	sub, err := state.Lookup("plan.md")
	if err != nil {
		t.Fatal(err)
	}
	if sub == nil || sub.ImportLogID != "log-2" || sub.Hash != "h2" {
		t.Errorf("Lookup = %+v, want log-2/h2", sub)
	}

	missing, err := state.Lookup("nope.md")
	if err != nil || missing != nil {
		t.Errorf("Lookup(missing) = %+v, %v; want nil, nil", missing, err)
	}
}

// TestStatePersists verifies records survive reopening the database.
func TestStatePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	state, err := OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := state.MarkSubmitted("a.txt", 1, "h", "log"); err != nil {
		t.Fatal(err)
	}
	state.Close()

	state, err = OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()
	ok, err := state.IsSubmitted("a.txt", 1, "h")
	if err != nil || !ok {
		t.Errorf("IsSubmitted after reopen = %v, %v; want true", ok, err)
	}
}

// TestHashFile verifies the SHA-256 of a known input.
func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.txt")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}
