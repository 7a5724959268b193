// Package redis provides a Redis-backed fragment cache that several
// specfrag processes can share.
//
// Layout, with every key under the configured prefix:
//
//	<prefix>:fragment:<id>            hash, one per fragment
//	<prefix>:fragment:<id>:relations  hash, "parent\tchild" -> relationship type
//	<prefix>:fragments                set of every fragment id
//	<prefix>:api:<api_id>:fragments   set of fragment ids of one API
//	<prefix>:api:<api_id>:meta        hash, API metadata
//	<prefix>:apis                     set of API ids with metadata
//
// Usage counters are incremented with HINCRBY inside a script so that a
// lookup racing a retention sweep never resurrects a deleted fragment.
package redis
