// Package models defines the domain types shared by the squad playlist pipeline.
//
// The package contains three groups of types:
//
// 1. Profile types produced by the normalizer from OCR text
//   - [UserMusicProfile] : one user's top 5 artists and top 5 songs
//   - [RawExtraction] : OCR text plus the screenshot [Layout] it came from
//   - [ParseResult] : tagged outcome of normalization (structured or raw text)
//
// 2. Catalog types returned by the music catalog and consumed by the resolver
//   - [SongQuery] : a profile song title with its truncation marker removed
//   - [CandidateTrack], [CandidateArtist] : search results
//   - [MatchResult] : a candidate scored against a query
//   - [PlaylistEntry] : an accepted track with its provenance
//
// 3. Persistent entities
//   - [Run] : one playlist generation and the tracks it produced
//
// Persistent entities implement [Model]; [Repository] defines their storage operations.
package models
