// Package routing defines the routing-subsystem collaborator consumed by
// the transport shim: per-family route lookup for a flow descriptor and
// confirmation that a source address is still assignable on the local host.
//
// On Linux the OS-backed implementation speaks rtnetlink; other platforms
// must supply their own Router.
package routing
