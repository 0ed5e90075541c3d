// Package library reads the on-disk shape of a music collection.
//
// It lists artist folders and the album folders inside them (at the artist
// root or beneath a category folder such as "Live"), parses release folder
// names into year, title, edition and category hint, and renders them back.
// Everything here is read-only; mutations belong to the migration engine.
package library
