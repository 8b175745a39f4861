// Package reembed regenerates the embeddings of stored documents, for example
// after switching embedding models.
//
// Documents are read in batches, embedded with retry and exponential
// backoff, normalized to unit length and written back. Progress is reported
// to an io.Writer.
package reembed
