package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/filedb/model"
)

// User is the record type of the Users model used across package tests.
type User struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Post is the record type of the Posts model used across package tests.
//
// Tags exercises nested values; a nil slice encodes as JSON null and is
// omitted from YAML.
type Post struct {
	ID     string   `json:"id" yaml:"id"`
	Title  string   `json:"title" yaml:"title"`
	Rating float64  `json:"rating" yaml:"rating"`
	Draft  bool     `json:"draft" yaml:"draft"`
	Tags   []string `json:"tags" yaml:"tags,omitempty"`
}

// Users is the shared model of User records keyed by ID.
var Users = model.Define("users", func(u User) int { return u.ID })

// Posts is the shared model of Post records keyed by ID.
var Posts = model.Define("posts", func(p Post) string { return p.ID })

// Registry returns a registry declaring Users then Posts.
func Registry(t testing.TB) *model.Registry {
	t.Helper()
	reg, err := model.NewRegistry(Users, Posts)
	require.NoError(t, err)
	return reg
}

// Alice, Bob and Carol are sample users.
func Alice() User { return User{ID: 1, Name: "Alice", Email: "alice@example.com"} }
func Bob() User   { return User{ID: 2, Name: "Bob", Email: "bob@example.com"} }
func Carol() User { return User{ID: 3, Name: "Carol", Email: "carol@example.com"} }

// SamplePosts returns posts covering strings, numbers, bools, nested values and null.
func SamplePosts() []Post {
	return []Post{
		{ID: "p1", Title: "Hello, world", Rating: 4.5, Draft: false, Tags: []string{"intro", "go"}},
		{ID: "p2", Title: `Quotes "and" <tags> & more`, Rating: 3, Draft: true, Tags: nil},
	}
}
