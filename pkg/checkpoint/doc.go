// Package checkpoint stores the per-query manifest that makes an export run
// resumable.
//
// A manifest captures the inputs the range plan was built from (requested
// window, result count, batch capacity) plus the index of the next range to
// attempt. It is rewritten atomically after every range through a temp file
// and rename, so readers never see a half-written document. The failure
// aggregator uses it to rebuild the planned sequence, and `export --resume`
// uses NextIndex to skip ranges that were already attempted.
package checkpoint
