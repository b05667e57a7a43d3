/*
Package health provides two related but distinct things: a small toolkit of
liveness Checkers (HTTP and TCP) that pkg/monitor uses to probe remote
endpoints, and a Registry that serves this node's own /healthz, /readyz and
/livez admin endpoints.

The Checker interface, Result, Config and Status answer "is this remote
thing still alive"; the endpoint monitor uses TCPChecker and its Result for
that purpose, and does not use Config or Status. Registry answers the different question "is this node
itself in good shape", aggregating the health of the node's own cluster
substrate, transport and monitor subsystems for an operator or load
balancer to query.
*/
package health
