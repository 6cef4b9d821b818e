package vertretung

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintIgnoresFieldOrder(t *testing.T) {
	a := Event{Fields: []Field{
		{Name: "Datum", Value: "01.09.2026"},
		{Name: "Fach", Value: "M-GK-1"},
		{Name: "Stunde", Value: "3"},
	}}
	b := Event{Fields: []Field{
		{Name: "Stunde", Value: "3"},
		{Name: "Datum", Value: "01.09.2026"},
		{Name: "Fach", Value: "M-GK-1"},
	}}
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.Equal(t, a.String(), b.String())
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := Event{Fields: []Field{{Name: "Stunde", Value: "3"}}}
	b := Event{Fields: []Field{{Name: "Stunde", Value: "4"}}}
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintIsStableAcrossCalls(t *testing.T) {
	e := Event{Fields: []Field{
		{Name: "Datum", Value: "01.09.2026"},
		{Name: "Hinweis", Value: "Ausfall"},
	}}
	require.Equal(t, e.Fingerprint(), e.Fingerprint())
	require.Len(t, e.Fingerprint(), 32)
}

func TestStringIsSingleLineJson(t *testing.T) {
	e := Event{Fields: []Field{
		{Name: "Hinweis", Value: "Raumänderung"},
		{Name: "Raum", Value: "A102"},
	}}

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(e.String()), &decoded))
	require.Equal(t, "Raumänderung", decoded["Hinweis"])
	require.Equal(t, "A102", decoded["Raum"])
	require.NotContains(t, e.String(), "\n")
}

func TestGetReturnsEmptyForMissingField(t *testing.T) {
	e := Event{Fields: []Field{{Name: "Fach", Value: "D-GK-2"}}}
	require.Equal(t, "D-GK-2", e.Get("Fach"))
	require.Equal(t, "", e.Get("Raum"))
}
