// Package repository provides access to indexed resource repositories.
//
// A repository is a named, ordered source of resources described by an
// index: a list of resources, each with its capabilities, requirements and
// an optional content location. Three implementations are provided:
//
//   - [IndexRepository]: an in-memory index, loaded from a JSON file or
//     built programmatically
//   - [HTTPRepository]: an index served over HTTP, with caching and retry
//   - [MongoRepository]: index documents stored in a MongoDB collection
//
// Repositories answer provider queries in index order, which downstream
// candidate ordering depends on.
package repository
