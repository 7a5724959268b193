// Package specsource reads API specifications from local files, HTTP(S)
// URLs and GitHub repositories.
//
// Every fetcher decodes JSON or YAML into a domain.SpecDocument and reports
// a validator (ETag) that the next fetch can present. A fetch with a
// matching validator returns domain.ErrNotModified without decoding.
//
// Supported locations:
//
//	/path/to/openapi.yaml          FileFetcher
//	https://example.com/spec.json  HTTPFetcher
//	github://owner/repo/path@ref   GitHubFetcher (ref is optional)
package specsource
