// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): OCR, extraction and embedding providers,
// the hybrid index, and persistence.
package driven
