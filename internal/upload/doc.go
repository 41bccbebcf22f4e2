// Package upload coordinates large file uploads and their server-side
// processing.
//
// A Controller keeps at most one active task per subject (a submission id
// or a "pitch:<campaign>" slot). Starting a new upload for a subject aborts
// the previous one first. Tasks move Uploading -> Processing when the
// request completes, and Processing -> Done when the server reports 100%
// over the realtime channel. Cancel, Fail and Release end a task early.
//
// Each task holds a preview handle from the Previews registry. The handle
// is revoked as soon as the task leaves Uploading/Processing.
package upload
