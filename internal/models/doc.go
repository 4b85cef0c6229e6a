// Package models defines the data shared by every stage of a mixbridge sync run.
//
// Descriptors flowing through the pipeline:
//   - [Track] : artist/title pair as reported by the source playlist
//   - [LibraryEntry] : an already-owned file from the library index
//   - [Candidate] : a remote file discovered by a backend search
//   - [DownloadJob] : a candidate submitted to the backend for download
//   - [PendingDownload] : a transfer the backend still holds in its queue
//
// [RunReport] summarizes one run and is what the run history persists.
package models
