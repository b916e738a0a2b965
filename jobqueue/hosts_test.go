package jobqueue

import "testing"

func TestHostFor(t *testing.T) {
	tests := []struct {
		command, input, want string
	}{
		{"fetch", "http://example.com/S1A.zip", "example.com"},
		{"fetch", "https://www.datapool.asf.alaska.edu/GRD_HD/SA/S1A.zip", "datapool.asf.alaska.edu"},
		{"fetch", "https://scihub.copernicus.eu:443/dhus/odata/v1/Products", "scihub.copernicus.eu"},
		{"fetch", "/local/path/to/file", HostLocal},
		{"fetch", "invalid-url", HostLocal},
		{"convert", "/path/to/file", HostLocal},
		{"convert", "http://example.com/file", HostLocal},
		{"publish", "/out/scene.tif", HostS3},
		{"batch", "", HostLocal},
	}
	for _, tt := range tests {
		if got := hostFor(tt.command, tt.input); got != tt.want {
			t.Errorf("hostFor(%q, %q) = %q; want %q", tt.command, tt.input, got, tt.want)
		}
	}
}

func TestHostLimits(t *testing.T) {
	q := setupTestQueue(t)

	a1 := mustAdd(t, q, "", "fetch", "http://host-a.com/1")
	a2 := mustAdd(t, q, "", "fetch", "http://host-a.com/2")
	b1 := mustAdd(t, q, "", "fetch", "http://host-b.com/1")
	l1 := mustAdd(t, q, "", "convert", "/data/1")
	l2 := mustAdd(t, q, "", "convert", "/data/2")

	// one job per host by default; blocked jobs are skipped, not waited on
	for _, want := range []string{a1, b1, l1, ""} {
		if got := claimID(t, q); got != want {
			t.Fatalf("claim = %q; want %q", got, want)
		}
	}

	if err := q.CompleteJob(a1); err != nil {
		t.Fatal(err)
	}
	if got := claimID(t, q); got != a2 {
		t.Errorf("claim after freeing host-a = %q; want %q", got, a2)
	}

	q.SetHostLimit(HostLocal, 2)
	if got := claimID(t, q); got != l2 {
		t.Errorf("claim after raising the local limit = %q; want %q", got, l2)
	}
}

func TestSlotReleasedOnEveryExit(t *testing.T) {
	exits := []struct {
		name string
		exit func(q *Queue, id string) error
		// cancelled tasks may still be running and keep the slot until Release
		heldUntilRelease bool
	}{
		{"complete", (*Queue).CompleteJob, false},
		{"error", (*Queue).ErrorJob, false},
		{"cancel", (*Queue).CancelJob, true},
		{"remove", (*Queue).RemoveJob, true},
	}
	for _, tt := range exits {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			id1 := mustAdd(t, q, "", "publish", "/out/1.tif")
			id2 := mustAdd(t, q, "", "publish", "/out/2.tif")

			first, err := q.ClaimJob()
			if err != nil || first == nil || first.ID != id1 {
				t.Fatalf("ClaimJob() = %v, %v; want %s", first, err, id1)
			}
			if err := tt.exit(q, id1); err != nil {
				t.Fatal(err)
			}
			if tt.heldUntilRelease {
				if got := claimID(t, q); got != "" {
					t.Errorf("claim after %s before Release = %q; want none", tt.name, got)
				}
			}
			q.Release(first)
			q.Release(first)
			if got := claimID(t, q); got != id2 {
				t.Errorf("claim after %s = %q; want %q", tt.name, got, id2)
			}
			if n := q.RunningCounts[HostS3]; n != 1 {
				t.Errorf("running on s3 = %d; want 1", n)
			}
		})
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	q := NewQueue()
	q.releaseLocked(HostLocal)
	if n := q.RunningCounts[HostLocal]; n != 0 {
		t.Errorf("running = %d; want 0", n)
	}
}
