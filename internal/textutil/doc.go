// Package textutil holds small text helpers shared by the parser, the
// extraction debug writer and the CLI.
//
// Token counts are a deterministic approximation (about four characters per
// token). They drive budgets and cost quotes, never billing.
package textutil
