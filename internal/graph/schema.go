// Package graph builds the GraphQL schema from resolver groups and serves it
// over HTTP.
package graph

import (
	"fmt"

	"github.com/graphql-go/graphql"
)

// Resolver is a group of root fields contributed to the schema.
type Resolver interface {
	Queries() graphql.Fields
	Mutations() graphql.Fields
}

// NewSchema merges the root fields of resolvers into one schema. Two groups
// defining the same root field is an error.
func NewSchema(resolvers ...Resolver) (graphql.Schema, error) {
	query := graphql.Fields{}
	mutation := graphql.Fields{}

	for _, r := range resolvers {
		if err := merge(query, r.Queries(), "Query"); err != nil {
			return graphql.Schema{}, err
		}
		if err := merge(mutation, r.Mutations(), "Mutation"); err != nil {
			return graphql.Schema{}, err
		}
	}
	if len(query) == 0 {
		return graphql.Schema{}, fmt.Errorf("schema has no query fields")
	}

	cfg := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: query}),
	}
	if len(mutation) > 0 {
		cfg.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutation})
	}

	schema, err := graphql.NewSchema(cfg)
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("building schema: %w", err)
	}
	return schema, nil
}

func merge(dst, src graphql.Fields, root string) error {
	for name, f := range src {
		if _, dup := dst[name]; dup {
			return fmt.Errorf("%s.%s defined twice", root, name)
		}
		dst[name] = f
	}
	return nil
}
