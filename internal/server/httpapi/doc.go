// Package httpapi is the HTTP upload endpoint: multipart uploads on
// /api/upload plus cheap probe routes for client reachability checks.
package httpapi
