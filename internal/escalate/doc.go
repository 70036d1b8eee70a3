// Package escalate defers low-confidence resolution decisions to an external
// decision service under a fixed, auditable contract. The service only ever
// picks among candidates the scorer already produced; it cannot invent
// destinations. Every failure mode collapses to a needs-review decision so
// escalation can never block or corrupt a run.
package escalate
