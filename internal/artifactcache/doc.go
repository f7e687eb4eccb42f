// Package artifactcache stores parsed documents between upload and
// extraction.
//
// Each record lives in its own JSON file named by a UUID, so a corrupt file
// can only ever lose one document. Access is serialized per id through an
// in-process lock table: writers take the exclusive lock, readers the shared
// one, and unrelated ids proceed in parallel. Decoded records are also kept
// in an in-memory layer whose entries expire with the record.
//
// Records have a fixed lifetime. Get reports a record past its lifetime as
// not found immediately; the Sweeper removes the file on its next pass along
// with anything that no longer decodes.
package artifactcache
