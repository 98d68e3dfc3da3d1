// Package permission maps storefront roles to capability bitmasks.
//
// Permission names get stable bit positions in a 64-bit [Mask64] through a
// [Registry]. A [RoleManager] binds each role name to the union of its
// permissions; [Storefront] returns the built-in matrix for the user, seller
// and admin roles. The highest bit is reserved as a root bit granting
// everything, which is how admin is expressed.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Decide whether a role is trusted. Callers check that first.
package permission
