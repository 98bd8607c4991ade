package normalization

import "testing"

func TestFirstPresentUsesDeclaredOrder(t *testing.T) {
	list := Aliases(UnitNone, "door_open", "DOOR_OPEN_STATUS", "contactStatus")
	payload := map[string]any{
		"contactStatus":    "open",
		"DOOR_OPEN_STATUS": "CLOSE",
	}
	alias, value, ok := list.FirstPresent(payload)
	if !ok {
		t.Fatalf("expected a match")
	}
	if alias.Key != "DOOR_OPEN_STATUS" || value != "CLOSE" {
		t.Fatalf("expected DOOR_OPEN_STATUS=CLOSE, got %s=%v", alias.Key, value)
	}
}

func TestFirstPresentNilValueCountsAsPresent(t *testing.T) {
	list := Aliases(UnitNone, "a", "b")
	alias, value, ok := list.FirstPresent(map[string]any{"a": nil, "b": 1.0})
	if !ok || alias.Key != "a" || value != nil {
		t.Fatalf("expected a=nil, got %s=%v ok=%v", alias.Key, value, ok)
	}
}

func TestFirstPresentNone(t *testing.T) {
	if _, _, ok := DoorOpenAliases.FirstPresent(nil); ok {
		t.Fatalf("expected no match for nil payload")
	}
	if _, _, ok := DoorOpenAliases.FirstPresent(map[string]any{"x": 1.0}); ok {
		t.Fatalf("expected no match for unrelated payload")
	}
}
