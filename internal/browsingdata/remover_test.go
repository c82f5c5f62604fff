package browsingdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRemoverWritesOneLinePerRequest(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRemover(&buf)

	opts := RemovalOptions{
		OriginTypes:   OriginTypes{UnprotectedWeb: true},
		Hostnames:     []string{"a.com"},
		CookieStoreID: "firefox-default",
	}
	require.NoError(t, r.Remove(opts, DataTypeSet{LocalStorage: true}))
	require.NoError(t, r.Remove(opts, DataTypeSet{Cookies: true}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &decoded))
	assert.Equal(t, "remove", decoded["kind"])
	assert.Equal(t, map[string]any{"localStorage": true}, decoded["dataToRemove"])
	options := decoded["options"].(map[string]any)
	assert.Equal(t, map[string]any{"unprotectedWeb": true}, options["originTypes"])
	assert.Equal(t, []any{"a.com"}, options["hostnames"])
}

func TestRecorderCopiesInput(t *testing.T) {
	rec := &Recorder{Err: errors.New("quota")}
	hosts := []string{"a.com"}

	err := rec.Remove(RemovalOptions{Hostnames: hosts}, DataTypeSet{Cookies: true})
	assert.Error(t, err)
	hosts[0] = "mutated.com"

	require.Len(t, rec.Requests(), 1)
	assert.Equal(t, []string{"a.com"}, rec.Requests()[0].Options.Hostnames)

	rec.Reset()
	assert.Empty(t, rec.Requests())
}
