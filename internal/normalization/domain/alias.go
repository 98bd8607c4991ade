package normalization

// Unit describes how a vendor value maps onto the canonical unit.
type Unit int

const (
	UnitNone Unit = iota
	UnitSeconds
	UnitMinutes
	UnitCelsius
	UnitFahrenheit
)

// Alias is one accepted vendor key for a canonical field.
type Alias struct {
	Key  string
	Unit Unit
}

// AliasList is an ordered list of vendor keys; earlier entries win.
type AliasList []Alias

// Aliases builds an AliasList whose keys share a unit.
func Aliases(unit Unit, keys ...string) AliasList {
	list := make(AliasList, 0, len(keys))
	for _, key := range keys {
		list = append(list, Alias{Key: key, Unit: unit})
	}
	return list
}

// Keys returns the alias keys in priority order.
func (l AliasList) Keys() []string {
	keys := make([]string, 0, len(l))
	for _, alias := range l {
		keys = append(keys, alias.Key)
	}
	return keys
}

// FirstPresent scans the list in declared order and returns the first alias
// whose key exists in the payload, together with its raw value. A key that
// exists with a nil value still counts as present.
func (l AliasList) FirstPresent(payload map[string]any) (Alias, any, bool) {
	if len(payload) == 0 {
		return Alias{}, nil, false
	}
	for _, alias := range l {
		if value, ok := payload[alias.Key]; ok {
			return alias, value, true
		}
	}
	return Alias{}, nil, false
}
