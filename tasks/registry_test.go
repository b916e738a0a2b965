package tasks

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stevecastle/sarview/jobqueue"
)

func TestBuiltinsRegistered(t *testing.T) {
	want := map[string]string{
		"batch":   "Convert Directory",
		"cleanup": "Clean Up Work Files",
		"convert": "Convert Scene",
		"fetch":   "Fetch Product",
		"publish": "Publish to S3",
		"remove":  "Remove Scenes",
		"wait":    "Wait",
	}
	got := map[string]string{}
	for _, task := range List() {
		if task.Fn == nil {
			t.Errorf("%s has no function", task.ID)
		}
		got[task.ID] = task.Name
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registered tasks (-want +got):\n%s", diff)
	}
}

func TestListIsSorted(t *testing.T) {
	list := List()
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Errorf("List()[%d] = %q after %q", i, list[i].ID, list[i-1].ID)
		}
	}
}

func TestRegisterReplaces(t *testing.T) {
	t.Cleanup(func() { unregister("speckle") })
	noop := func(*jobqueue.Job, *jobqueue.Queue, *sync.Mutex) error { return nil }

	Register("speckle", "Speckle Filter", noop)
	Register("speckle", "Lee Filter", noop)

	task, ok := Lookup("speckle")
	if !ok {
		t.Fatal("Lookup(speckle) found nothing")
	}
	if task.Name != "Lee Filter" {
		t.Errorf("Name = %q; want the later registration", task.Name)
	}
	if _, ok := Lookup("despeckle"); ok {
		t.Error("Lookup of an unregistered command succeeded")
	}
}
