// Package picstream provides a library for user-generated content with
// moderated image publishing: text posts, direct-to-object-store image
// uploads authorized by short-lived grants, and an asynchronous analysis
// pipeline that carries each image from upload to publication or rejection.
//
// It exposes a Service interface for the synchronous operations (creating
// posts, registering uploads, listing and fetching records, confirming
// users) and a Pipeline for the asynchronous lifecycle driven by
// object-store completion notifications. Implementations of the record and
// user stores (memory, Postgres), upload brokers (S3 presigned POST,
// HMAC-signed URLs), and analyzers (Rekognition, scripted in-memory) are
// provided under subpackages.
//
// Lifecycle
//
// An image record is created in waiting_upload together with its upload
// grant. The completion notification moves it to under_moderation, then
// either to rejected (flagged content) or through awaiting_recognition to
// public, where its labels and public URL are recorded. Every transition is
// a conditional write on the current status, so at-least-once notification
// delivery re-runs analysis at most up to the first successful transition
// and can never move a record backwards.
//
// Listings are keyset-paginated with opaque cursors and are scoped either
// to the authenticated owner or to published images only.
package picstream
