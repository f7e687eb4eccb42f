// Package parser turns uploaded documents into plain text and a token count.
//
// Plain text and Markdown are read as UTF-8. Word documents are read from the
// document.xml part of the archive. PDF text comes from
// github.com/ledongthuc/pdf. Rejected uploads are never cached.
package parser
