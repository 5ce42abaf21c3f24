// Package api implements the HTTP surface: download submission, progress
// queries, and the Server-Sent Events progress stream.
package api
