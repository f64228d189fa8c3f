// Package handle maps internally-owned resources to opaque string handles
// that can be passed across the scripting boundary.
//
// A handle has the form "<kind>:<id>". The kind tag lets a table reject a
// handle minted for another resource type, and ids are random UUIDs that are
// never reused, so a handle to a removed resource cannot resolve to a newer
// one. Each entry also records the script context that owns it, which is how
// resources are collected when a script goes away.
//
// The table only holds the mapping. Releasing the resource itself is the
// caller's job and must happen after Remove.
package handle
