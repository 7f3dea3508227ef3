// Package cluster provides this node's view of cluster membership.
//
// This package handles:
//   - Node identity and whether clustering is enabled at all
//   - A cached view of every node that has heartbeated, refreshed after each
//     heartbeat write
//   - Liveness, judged by comparing node-local heartbeat times with this
//     node's clock and a liveness threshold
package cluster
