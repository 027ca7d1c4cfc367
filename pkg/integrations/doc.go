// Package integrations provides HTTP clients for remote package sources.
//
// # Overview
//
// The [Client] type holds the shared plumbing: a timeout-bound HTTP client,
// default headers, retry with backoff for transient failures, and response
// caching through any [cache.Cache] backend. Source-specific clients embed
// it:
//
//   - [gitlab]: raw APKBUILD files from an aports GitLab project
//
// # Caching
//
// [Client.Cached] stores raw response bodies under "<prefix>:<sha256(key)>"
// with the client's TTL. Passing refresh bypasses the lookup but still
// stores the new body.
//
// [gitlab]: github.com/matzehuels/depmap/pkg/integrations/gitlab
// [cache.Cache]: github.com/matzehuels/depmap/pkg/cache.Cache
package integrations
