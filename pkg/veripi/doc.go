// Package veripi implements a symbolic security-protocol analyser: a
// message algebra and unifier, a stateful Horn-rule core, and a
// translation/session-search engine that decides whether a Dolev-Yao
// attacker can learn a given message from a protocol written in a typed
// applied process calculus.
//
// The package is organised the way gokando organises miniKanren: one flat
// package with many small files grouped by concern, rather than a deep
// tree of sub-packages. Terms, guards and unification live in
// message.go/sigma.go/guard.go/unify.go; the Horn-rule core (snapshots,
// rules, composition, implication, transfer) lives in
// snapshot.go/rule.go/rule_factory.go/composition.go/implication.go/
// transfer.go; the process model and resolver live in
// process.go/resolver.go/branchcond.go; the translator lives in
// socket.go/translate.go/mutate_*.go; the session-search engine lives in
// nession.go/knit.go; and the query engine lives in query.go/attack.go.
//
// The textual front-end (lexer and parser for the source language) is a
// separate package, internal/lang, since it is an external collaborator
// to the reasoning core in the sense of the design: callers may also
// build a Network value directly without ever touching source text.
package veripi
