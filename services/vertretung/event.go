package vertretung

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// Field is one named value of a plan event. Order of fields carries
// presentation meaning only, identity does not depend on it.
type Field struct {
	Name  string
	Value string
}

type Event struct {
	Fields []Field
}

func (e Event) Get(name string) string {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func (e Event) canonical() []byte {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Name] = f.Value
	}
	// encoding/json writes map keys in sorted order, which makes this a
	// canonical serialization independent of field insertion order
	out, _ := json.Marshal(m)
	return out
}

// Fingerprint is the content hash used for dedup: identical field content
// always yields an identical fingerprint, no matter the field order.
func (e Event) Fingerprint() string {
	sum := md5.Sum(e.canonical())
	return hex.EncodeToString(sum[:])
}

// String renders the canonical single-line form stored in the ledger.
func (e Event) String() string {
	return string(e.canonical())
}
