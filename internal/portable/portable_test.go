package portable

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfob/keyfob/internal/store"
	"github.com/keyfob/keyfob/internal/vault"
	"github.com/keyfob/keyfob/pkg/schema"
)

func testFixture(t *testing.T) (store.Store, *vault.Sealer) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	sealer, err := vault.New(vault.Config{MasterKey: make([]byte, 32)})
	require.NoError(t, err)
	return st, sealer
}

func TestExportImport_RoundTrip(t *testing.T) {
	st, sealer := testFixture(t)
	ctx := context.Background()

	sealed, err := sealer.Seal([]byte("hunter2"))
	require.NoError(t, err)
	_, err = st.CreateEntry(ctx, "login", "mail", map[string]string{store.AttrKey: "mail"}, sealed, false)
	require.NoError(t, err)

	doc, err := Export(ctx, st, sealer, "login")
	require.NoError(t, err)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "mail", doc.Entries[0].DisplayName)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	// Import into a fresh store under a different master key.
	other, err := vault.New(vault.Config{MasterKey: append(make([]byte, 31), 1)})
	require.NoError(t, err)
	st2, _ := testFixture(t)

	n, err := Import(ctx, st2, other, "login", data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := st2.FindEntries(ctx, "login", map[string]string{store.AttrKey: "mail"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	plain, err := other.Open(entries[0].Secret)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), plain)
}

func TestImport_RejectsInvalidDocument(t *testing.T) {
	st, sealer := testFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		data string
	}{
		{"notJSON", `{{`},
		{"missingRing", `{"version":1,"entries":[]}`},
		{"wrongVersion", `{"version":2,"ring":"login","entries":[]}`},
		{"extraField", `{"version":1,"ring":"login","entries":[],"extra":true}`},
		{"entryMissingSecret", `{"version":1,"ring":"login","entries":[{"display_name":"x","attributes":{}}]}`},
		{"nonStringAttribute", `{"version":1,"ring":"login","entries":[{"display_name":"x","attributes":{"a":1},"secret":""}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Import(ctx, st, sealer, "login", []byte(tc.data))
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
		})
	}

	// Nothing was written.
	infos, err := st.ListEntries(ctx, "login")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestImport_RejectsBadBase64BeforeWriting(t *testing.T) {
	st, sealer := testFixture(t)
	ctx := context.Background()

	data := `{"version":1,"ring":"login","entries":[
		{"display_name":"good","attributes":{"key":"good"},"secret":"aHVudGVyMg=="},
		{"display_name":"bad","attributes":{"key":"bad"},"secret":"%%%"}
	]}`
	_, err := Import(ctx, st, sealer, "login", []byte(data))
	require.Error(t, err)

	infos, err := st.ListEntries(ctx, "login")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestQueryEngine_FiltersOutput(t *testing.T) {
	e := NewQueryEngine()
	ctx := context.Background()

	input := []map[string]any{
		{"display_name": "alice@example.com"},
		{"display_name": "bob@other.net"},
	}
	results, err := e.Eval(ctx, `.[] | select(.display_name | endswith("example.com")) | .display_name`, input)
	require.NoError(t, err)
	assert.Equal(t, []any{"alice@example.com"}, results)
}

func TestQueryEngine_ParseError(t *testing.T) {
	e := NewQueryEngine()

	_, err := e.Eval(context.Background(), `.[ broken`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestQueryEngine_EnvIsBlocked(t *testing.T) {
	e := NewQueryEngine()
	t.Setenv("KEYFOB_TEST_SECRET", "leak")

	results, err := e.Eval(context.Background(), `$ENV.KEYFOB_TEST_SECRET`, map[string]any{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0])
}
