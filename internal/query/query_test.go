package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/model"
)

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)

	_, err = Compile("   ")
	assert.Error(t, err)

	_, err = Compile("age >= ")
	assert.Error(t, err)
}

func TestFilter_Match(t *testing.T) {
	alice := model.Document{"id": "1", "name": "Alice", "age": 30.0, "role": "admin", "first-name": "Alice"}
	bob := model.Document{"id": "2", "name": "Bob", "age": 17.0}

	tests := []struct {
		expr  string
		doc   model.Document
		match bool
	}{
		{`age >= 18`, alice, true},
		{`age >= 18`, bob, false},
		{`role == "admin"`, alice, true},
		{`role == "admin"`, bob, false},
		{`role == nil`, bob, true},
		{`name startsWith "A" && age < 40`, alice, true},
		{`record["first-name"] == "Alice"`, alice, true},
		{`id in ["2", "3"]`, bob, true},
		{`true`, bob, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := f.Match(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.match, got)
			assert.Equal(t, tt.expr, f.String())
		})
	}
}

func TestFilter_PredicateRecordsFirstError(t *testing.T) {
	f, err := Compile(`age > 10`)
	require.NoError(t, err)

	pred := f.Predicate()
	assert.True(t, pred(model.Document{"age": 11.0}))
	assert.NoError(t, f.Err())

	assert.False(t, pred(model.Document{"age": "eleven"}))
	require.Error(t, f.Err())
	first := f.Err()

	assert.False(t, pred(model.Document{"age": []any{}}))
	assert.Equal(t, first, f.Err())
}
