// Package model is the record façade over a key-value store.
//
// A DB registers models by name. Each Model binds one schema to the store
// and exposes Find, FindOne, Create, Update, UpdateOrCreate, Destroy and
// DestroyAll. Records live under the key "<id>-<model>", so model names
// may not contain "-".
//
// Every write funnels through the same pipeline:
//
//	strip → defaults/id/timestamps → validate → cast → before hook →
//	persist → after hook → Instance
//
// Reads are full scans: each row of the model is cast to its declared
// types, soft-deleted rows are dropped unless asked for, and the predicate
// is evaluated by internal/query.
//
// # Errors
//
// Validation failures are returned as validate.Errors. Everything else is
// an *Error with a Code; use IsNotFound, IsGuarded, IsDuplicateSchema and
// IsValidation to classify.
//
// # Destructive Operations
//
// DestroyAll and DB.Drop run only when the DB environment is
// "development". Elsewhere they return a GUARDED error and remove nothing.
package model
