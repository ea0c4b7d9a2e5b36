// Package ingest imports speech transcripts from local files.
//
// Each supported format (JSON, YAML, CSV, Markdown with front matter,
// saved HTML statement pages, plain text) has its own importer that
// implements the Importer interface. The engine auto-detects formats by
// file extension, falls back to content sniffing, and hands every parsed
// speech to a SpeechSink.
//
// Every speech keeps its provenance: the source locator is either the
// document's own source_url or the absolute path of the file it came from.
package ingest
