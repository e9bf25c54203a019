package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/internal/testutil"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// sampleState returns users [Alice, Bob] and the sample posts.
func sampleState(t *testing.T, reg *model.Registry) *state.State {
	t.Helper()
	st := state.New(reg)
	users, _ := st.Collection("users")
	require.NoError(t, users.Insert(testutil.Alice()))
	require.NoError(t, users.Insert(testutil.Bob()))
	posts, _ := st.Collection("posts")
	for _, p := range testutil.SamplePosts() {
		require.NoError(t, posts.Insert(p))
	}
	return st
}

// allAdapters returns one adapter of every supported combination rooted in dir.
func allAdapters(dir string) map[string]Adapter {
	return map[string]Adapter{
		"json":             NewJSON(filepath.Join(dir, "db.json")),
		"json-compact":     NewJSON(filepath.Join(dir, "compact.json"), Compact()),
		"yaml":             NewYAML(filepath.Join(dir, "db.yaml")),
		"sqlite":           NewSQLite(filepath.Join(dir, "db.sqlite")),
		"json-partitioned": NewJSONPartitioned(filepath.Join(dir, "json-parts")),
		"yaml-partitioned": NewYAMLPartitioned(filepath.Join(dir, "yaml-parts")),
		"csv":              NewCSV(filepath.Join(dir, "csv-parts")),
	}
}

func TestAdapters_RoundTrip(t *testing.T) {
	reg := testutil.Registry(t)
	want := sampleState(t, reg)

	for name, a := range allAdapters(t.TempDir()) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.Persist(want))

			got, err := a.Load(reg)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "loaded state differs from persisted state")

			posts, _ := got.Collection("posts")
			assert.Equal(t, testutil.SamplePosts(), testutil.Posts.Typed(posts.GetAll()))
		})
	}
}

// profile has fields that a zero record does not reveal: omitempty values,
// pointers and an embedded struct.
type profile struct {
	ID    int     `json:"id"`
	Note  string  `json:"note,omitempty"`
	Nick  *string `json:"nick"`
	Score *int    `json:"score,omitempty"`
	Audit
}

// Audit is embedded in profile; its fields encode inline.
type Audit struct {
	Owner string `json:"owner,omitempty"`
}

var profiles = model.Define("profiles", func(p profile) int { return p.ID })

func TestAdapters_RoundTripOptionalFields(t *testing.T) {
	reg := model.MustRegistry(profiles)
	nick, score := "42", 7
	want := state.New(reg)
	c, _ := want.Collection("profiles")
	require.NoError(t, c.Insert(profile{ID: 1, Note: "hello", Nick: &nick, Score: &score, Audit: Audit{Owner: "ops"}}))
	require.NoError(t, c.Insert(profile{ID: 2}))

	for name, a := range allAdapters(t.TempDir()) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.Persist(want))

			got, err := a.Load(reg)
			require.NoError(t, err)
			gc, _ := got.Collection("profiles")
			assert.Equal(t, c.GetAll(), gc.GetAll())
		})
	}
}

func TestAdapters_RoundTripEmptyState(t *testing.T) {
	reg := testutil.Registry(t)
	empty := state.New(reg)

	for name, a := range allAdapters(t.TempDir()) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.Persist(empty))
			got, err := a.Load(reg)
			require.NoError(t, err)
			assert.True(t, empty.Equal(got))
		})
	}
}

func TestAdapters_LoadMissingTargetIsEmpty(t *testing.T) {
	reg := testutil.Registry(t)

	for name, a := range allAdapters(t.TempDir()) {
		t.Run(name, func(t *testing.T) {
			got, err := a.Load(reg)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Len())
			for _, n := range reg.Names() {
				_, ok := got.Collection(n)
				assert.True(t, ok, n)
			}
		})
	}
}

func TestAdapters_PersistOverwrites(t *testing.T) {
	reg := testutil.Registry(t)

	for name, a := range allAdapters(t.TempDir()) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, a.Persist(sampleState(t, reg)))

			smaller := state.New(reg)
			users, _ := smaller.Collection("users")
			require.NoError(t, users.Insert(testutil.Carol()))
			require.NoError(t, a.Persist(smaller))

			got, err := a.Load(reg)
			require.NoError(t, err)
			assert.True(t, smaller.Equal(got))
		})
	}
}

func TestUnified_LoadDirectoryIsIOError(t *testing.T) {
	reg := testutil.Registry(t)
	dir := t.TempDir()

	for _, a := range []Adapter{NewJSON(dir), NewYAML(dir), NewSQLite(dir)} {
		_, err := a.Load(reg)
		require.Error(t, err)
		assert.True(t, dberr.IsIO(err), "%T: %v", a, err)
	}
}

func TestUnified_PersistMissingParentIsIOError(t *testing.T) {
	reg := testutil.Registry(t)
	path := filepath.Join(t.TempDir(), "missing", "db.json")

	err := NewJSON(path).Persist(state.New(reg))
	require.Error(t, err)
	assert.True(t, dberr.IsIO(err))

	var e *dberr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, path, e.Path)
}

func TestPartitioned_LoadFileIsIOError(t *testing.T) {
	reg := testutil.Registry(t)
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewJSONPartitioned(path).Load(reg)
	require.Error(t, err)
	assert.True(t, dberr.IsIO(err))

	err = NewJSONPartitioned(path).Persist(state.New(reg))
	require.Error(t, err)
	assert.True(t, dberr.IsIO(err))
}

func TestAdapters_CorruptContentIsSerializationError(t *testing.T) {
	reg := testutil.Registry(t)
	dir := t.TempDir()

	cases := map[string]struct {
		adapter Adapter
		file    string
		content string
	}{
		"json":            {NewJSON(filepath.Join(dir, "bad.json")), "bad.json", `{"users": [`},
		"json wrong type": {NewJSON(filepath.Join(dir, "type.json")), "type.json", `{"users": [{"id": "one"}]}`},
		"yaml":            {NewYAML(filepath.Join(dir, "bad.yaml")), "bad.yaml", "users: [\n"},
		"yaml not a map":  {NewYAML(filepath.Join(dir, "list.yaml")), "list.yaml", "- 1\n- 2\n"},
		"sqlite":          {NewSQLite(filepath.Join(dir, "bad.sqlite")), "bad.sqlite", "this is not a database file at all, just some text padding it out"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.content), 0o644))
			_, err := tc.adapter.Load(reg)
			require.Error(t, err)
			assert.True(t, dberr.IsSerialization(err), "got %v", err)
		})
	}
}

func TestAdapters_DuplicateIDsOnLoadIsSerializationError(t *testing.T) {
	reg := testutil.Registry(t)
	dir := t.TempDir()

	unified := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(unified, []byte(`{"users": [{"id": 1}, {"id": 1}]}`), 0o644))
	_, err := NewJSON(unified).Load(reg)
	require.Error(t, err)
	assert.True(t, dberr.IsSerialization(err))

	parts := filepath.Join(dir, "parts")
	require.NoError(t, os.MkdirAll(parts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parts, "users.csv"), []byte("id,name,email\n7,a,\n7,b,\n"), 0o644))
	_, err = NewCSV(parts).Load(reg)
	require.Error(t, err)
	assert.True(t, dberr.IsSerialization(err))
}

func TestForPath(t *testing.T) {
	cases := map[string]string{
		"db.json":    "*adapter.Unified",
		"db.JSON":    "*adapter.Unified",
		"db.yaml":    "*adapter.Unified",
		"db.yml":     "*adapter.Unified",
		"db.db":      "*adapter.SQLite",
		"db.sqlite":  "*adapter.SQLite",
		"db.sqlite3": "*adapter.SQLite",
		"data":       "*adapter.Partitioned",
		"data.d":     "*adapter.Partitioned",
	}
	for path, want := range cases {
		assert.Equal(t, want, fmt.Sprintf("%T", ForPath(path)), path)
	}

	u := ForPath("db.yml").(*Unified)
	assert.Equal(t, ".yaml", u.format.Extension())
	assert.Equal(t, "db.yml", u.Path())
}

func TestNew(t *testing.T) {
	for _, f := range ValidFormats {
		for _, l := range ValidLayouts {
			a, err := New(f, l, "x")
			supported := !(f == FormatCSV && l == LayoutUnified) && !(f == FormatSQLite && l == LayoutPartitioned)
			if supported {
				require.NoError(t, err, "%s/%s", f, l)
				assert.NotNil(t, a)
			} else {
				require.Error(t, err, "%s/%s", f, l)
			}
		}
	}
}

func TestParseFormatAndLayout(t *testing.T) {
	f, err := ParseFormat(" YML ")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	l, err := ParseLayout("Partitioned")
	require.NoError(t, err)
	assert.Equal(t, LayoutPartitioned, l)

	_, err = ParseLayout("sharded")
	assert.Error(t, err)
}
