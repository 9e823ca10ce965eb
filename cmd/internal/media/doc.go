// Package media stores uploaded images (avatars, covers, thumbnails) in an
// S3-compatible bucket and hands back public URLs.
//
// Uploads are best-effort: a transport failure logs and yields an empty URL
// instead of failing the surrounding request, so registration and profile
// updates keep working when the object store is down. Callers that require a
// URL must check for the empty string.
package media
