package pipeline

import "testing"

func TestContextMerge(t *testing.T) {
	base := Context{"a": 1, "b": 2}
	merged := base.Merge(Context{"b": 3}, Context{"c": 4}, nil)

	if merged["a"] != 1 || merged["b"] != 3 || merged["c"] != 4 {
		t.Errorf("Unexpected merge result %v", merged)
	}
	if base["b"] != 2 {
		t.Errorf("Expected Merge to leave the receiver untouched, got %v", base)
	}

	var empty Context
	if empty.Clone() == nil {
		t.Errorf("Expected Clone of nil context to be non-nil")
	}
}

func TestValue(t *testing.T) {
	c := Context{"name": "marble", "count": 3}

	if v, ok := Value[string](c, "name"); !ok || v != "marble" {
		t.Errorf("Expected marble, got %q %v", v, ok)
	}
	if _, ok := Value[string](c, "count"); ok {
		t.Errorf("Expected type mismatch to report false")
	}
	if _, ok := Value[int](c, "missing"); ok {
		t.Errorf("Expected missing key to report false")
	}
}

func TestGlobalRegistry(t *testing.T) {
	t.Cleanup(ResetGlobalMiddlewares)

	a := CreateMiddleware(nil, passThrough)
	b := CreateMiddleware(nil, passThrough)
	SetGlobalMiddlewares(a, b)

	snapshot := GlobalMiddlewares()
	if len(snapshot) != 2 || snapshot[0] != a || snapshot[1] != b {
		t.Fatalf("Unexpected registry snapshot %v", snapshot)
	}
	snapshot[0] = nil
	if GlobalMiddlewares()[0] != a {
		t.Errorf("Expected snapshot to be a copy")
	}

	ResetGlobalMiddlewares()
	if len(GlobalMiddlewares()) != 0 {
		t.Errorf("Expected registry to be empty after reset")
	}
}
