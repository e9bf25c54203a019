package schema

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
)

const userSchema = `{
	id:    string
	name:  string & != ""
	age?:  int & >=0 & <=150
	role?: "admin" | "member"
}`

type account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age,omitempty"`
}

func TestCompile_InvalidSource(t *testing.T) {
	_, err := Compile(`{id: string`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile(`{ name: }`) })
}

func TestValidate_Documents(t *testing.T) {
	s := MustCompile(userSchema)

	tests := []struct {
		name  string
		doc   model.Document
		valid bool
	}{
		{"complete", model.Document{"id": "u1", "name": "Alice", "age": 30.0}, true},
		{"optional fields omitted", model.Document{"id": "u1", "name": "Alice"}, true},
		{"extra fields allowed", model.Document{"id": "u1", "name": "Alice", "nickname": "Al"}, true},
		{"enum member", model.Document{"id": "u1", "name": "Alice", "role": "admin"}, true},
		{"missing required field", model.Document{"id": "u1"}, false},
		{"empty name", model.Document{"id": "u1", "name": ""}, false},
		{"wrong type", model.Document{"id": 7.0, "name": "Alice"}, false},
		{"out of bounds", model.Document{"id": "u1", "name": "Alice", "age": -1.0}, false},
		{"fractional int", model.Document{"id": "u1", "name": "Alice", "age": 1.5}, false},
		{"not an enum member", model.Document{"id": "u1", "name": "Alice", "role": "root"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.doc)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ViolationError
			require.True(t, errors.As(err, &ve))
			assert.NotEmpty(t, ve.Violations)
		})
	}
}

func TestValidate_StructsUseJSONNames(t *testing.T) {
	s := MustCompile(userSchema)

	assert.NoError(t, s.Validate(account{ID: "a", Name: "Alice", Age: 40}))
	assert.Error(t, s.Validate(account{ID: "a", Name: "Alice", Age: 200}))
}

func TestValidate_ClosedSchemaRejectsExtraFields(t *testing.T) {
	s := MustCompile(`close({id: string})`)

	assert.NoError(t, s.Validate(model.Document{"id": "x"}))
	assert.Error(t, s.Validate(model.Document{"id": "x", "extra": true}))
}

func TestCUE_AsModelValidator(t *testing.T) {
	s := MustCompile(userSchema)
	users := model.DefineDocument("users", "id", model.WithValidator(s))

	err := users.Validate(model.Document{"id": "u1"})
	require.Error(t, err)
	assert.True(t, dberr.IsValidation(err))

	var ve *ViolationError
	assert.True(t, errors.As(err, &ve))
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.cue")
	require.NoError(t, os.WriteFile(path, []byte(userSchema), 0o644))

	s, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, userSchema, s.Source())
	assert.NoError(t, s.Validate(model.Document{"id": "u1", "name": "Alice"}))

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestValidate_Concurrent(t *testing.T) {
	s := MustCompile(userSchema)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := model.Document{"id": "u", "name": "N", "age": float64(i)}
			assert.NoError(t, s.Validate(doc))
		}(i)
	}
	wg.Wait()
}
