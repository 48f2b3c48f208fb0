package proc

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/portwatch/portwatch/pkg/model"
)

func fakeResolver(table map[int]model.ProcessInfo, calls *int) *Resolver {
	r := NewResolver(DefaultNameTTL)
	r.lookup = func(_ context.Context, pid int) (model.ProcessInfo, error) {
		if calls != nil {
			*calls++
		}
		info, ok := table[pid]
		if !ok {
			return model.ProcessInfo{}, ErrPrivilegeDenied
		}
		return info, nil
	}
	return r
}

func TestResolverName(t *testing.T) {
	calls := 0
	r := fakeResolver(map[int]model.ProcessInfo{
		10: {PID: 10, Name: "nginx"},
	}, &calls)

	if got := r.Name(0); got != "" {
		t.Errorf("Name(0) = %q, want empty", got)
	}
	if got := r.Name(10); got != "nginx" {
		t.Errorf("Name(10) = %q, want nginx", got)
	}
	if got := r.Name(10); got != "nginx" {
		t.Errorf("cached Name(10) = %q, want nginx", got)
	}
	if calls != 1 {
		t.Errorf("lookup called %d times, want 1", calls)
	}
	if got := r.Name(99); got != "PID 99" {
		t.Errorf("Name(99) = %q, want placeholder", got)
	}

	r.Forget(10)
	r.Name(10)
	if calls != 3 {
		t.Errorf("lookup called %d times after Forget, want 3", calls)
	}
}

func TestResolverAncestry(t *testing.T) {
	r := fakeResolver(map[int]model.ProcessInfo{
		1:   {PID: 1, PPID: 0, Name: "init"},
		50:  {PID: 50, PPID: 1, Name: "dockerd"},
		300: {PID: 300, PPID: 50, Name: "docker-proxy"},
	}, nil)

	chain := r.Ancestry(context.Background(), 300)
	var names []string
	for _, p := range chain {
		names = append(names, p.Name)
	}
	want := []string{"init", "dockerd", "docker-proxy"}
	if len(names) != len(want) {
		t.Fatalf("chain = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("chain = %v, want %v", names, want)
		}
	}
}

func TestResolverAncestryStopsOnLoop(t *testing.T) {
	r := fakeResolver(map[int]model.ProcessInfo{
		7: {PID: 7, PPID: 8, Name: "a"},
		8: {PID: 8, PPID: 7, Name: "b"},
	}, nil)
	if chain := r.Ancestry(context.Background(), 7); len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
}

func TestResolverRealSelf(t *testing.T) {
	r := NewResolver(DefaultNameTTL)
	info, err := r.Details(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("Details(self): %v", err)
	}
	if info.Name == "" {
		t.Fatal("empty name for the test process")
	}
}

func TestClassify(t *testing.T) {
	if !errors.Is(classify(os.ErrPermission), ErrPrivilegeDenied) {
		t.Error("permission error not classified as privilege denied")
	}
	if !errors.Is(classify(os.ErrNotExist), ErrProcessGone) {
		t.Error("not-exist error not classified as gone")
	}
}
