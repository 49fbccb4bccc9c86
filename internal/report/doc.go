// Package report renders a finished backup session into the pair of
// report files stored inside the backup folder: a human-readable
// backup_report.txt and a machine-readable backup_report.json.
//
// The package consumes only the session summary and result list; it
// knows nothing about how the backup ran.
package report
