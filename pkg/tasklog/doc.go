// Package tasklog persists the outcome of every export range.
//
// Each query gets one JSON-lines file in the log directory, named from the
// configured prefix and the query key. Every attempted range appends one
// line; nothing is rewritten, so a crash loses at most the line being
// written and a reader skips any torn line it finds.
//
//	{"query_content":"SO=(Water Research)","start_record":1,"end_record":500,
//	 "status":"success","timestamp":"2024-05-01T10:00:00Z", ...}
package tasklog
