// Package gitlab fetches APKBUILD files from an aports project on GitLab.
//
// Alpine publishes aports at gitlab.alpinelinux.org/alpine/aports. The
// client reads descriptors through GitLab's raw file endpoint, so a single
// package can be inspected without a local checkout:
//
//	c := gitlab.NewClient(backend, gitlab.Options{})
//	pkgs, err := c.FetchPackages(ctx, "main", "curl", "", false)
//
// Responses are cached in the given backend (see [integrations.Client]).
//
// [integrations.Client]: github.com/matzehuels/depmap/pkg/integrations.Client
package gitlab
