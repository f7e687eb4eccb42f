// Package language detects document languages and pairs translations.
//
// Tags are canonical BCP 47 strings ("en-GB", "de"). Detection looks at the
// filename first (card_EN.txt, offer-(DE).docx, de-DE_product.pdf) and falls
// back to the document text. Documents whose base language is English are
// treated as the source side of a translation pair; every other language is a
// target.
//
// Pair assigns pair ids ("1", "2", ...) to documents that share a base name
// and differ in language.
package language
