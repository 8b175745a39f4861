// Package ingestion provides pipeline orchestration for loading pages into
// the local document store.
//
// The Pipeline type manages the ingestion workflow for documents, including:
//   - Cleaning page content
//   - Adding documents to storage
//   - Generating embeddings on a worker pool
//
// Pages are read either from memory or from a directory of
// "<page_id>_<title>.txt" files.
package ingestion
