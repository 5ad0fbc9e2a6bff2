// Package registry maintains the Record Schema Registry: one append-only
// schema per resource class, each extending a category superclass.
//
// Categories are the business-object kinds of the upstream service
// (catalogs, documents, registers, and the virtual tables computed from
// registers). They are defined in CUE; the built-in set is embedded and a
// replacement can be loaded from a file. Init installs one abstract
// superclass per category carrying the identity fields and the system
// fields (StampField, plus DiscriminatorField for virtual categories).
//
// The registry mirrors declared fields in memory so lookups made while
// decoding rows never touch the store.
package registry
