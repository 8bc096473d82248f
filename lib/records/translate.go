package records

import (
	"sort"

	"github.com/ValentinKolb/recstore/lib/datastore"
)

// IDField is the record field that carries the entity id.
const IDField = "id"

// Record is the application-facing form of an entity: a plain mapping from
// field name to value with the entity id inlined under IDField.
type Record map[string]interface{}

// FromDatastore translates an entity into a record.
// The returned record is the entity's Data with IDField set to the key id,
// so the entity must not be used afterwards.
func FromDatastore(e *datastore.Entity) Record {
	if e.Data == nil {
		e.Data = make(map[string]interface{}, 1)
	}
	e.Data[IDField] = e.Key.ID
	return Record(e.Data)
}

// ToDatastore translates a record into the property list written to the datastore.
// Fields with a nil value are skipped. The properties are ordered by name, and
// ExcludeFromIndexes is set exactly for the names listed in nonIndexed.
func ToDatastore(rec Record, nonIndexed ...string) []datastore.Property {
	excluded := make(map[string]struct{}, len(nonIndexed))
	for _, name := range nonIndexed {
		excluded[name] = struct{}{}
	}

	names := make([]string, 0, len(rec))
	for name, value := range rec {
		if value == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]datastore.Property, 0, len(names))
	for _, name := range names {
		_, skipIndex := excluded[name]
		props = append(props, datastore.Property{
			Name:               name,
			Value:              rec[name],
			ExcludeFromIndexes: skipIndex,
		})
	}
	return props
}
