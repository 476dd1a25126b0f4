// Package exporter downloads the records of a search in fixed-size ranges.
//
// A run makes sure the browser shows the results of the query, sorts them
// oldest first, reads the result count and plans the export ranges. Each
// range goes through the plain-text export dialog, the downloaded file is
// renamed after the query and range, and the outcome is appended to the
// per-query task log. Progress is checkpointed after every range so an
// interrupted run can be resumed. Ranges that still failed at the end are
// written to a failure report.
package exporter
