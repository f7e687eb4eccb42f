// Package estimate predicts prompt size and cost before any extraction call
// is made. Everything here is a pure function of its arguments so the UI can
// recompute estimates on every change to category assignment.
package estimate
