// Package session holds the signed-in state of an idctl process.
//
// A Manager owns the raw bearer token, the user decoded from its claims, and
// the derived admin flag. Tokens are decoded without signature verification;
// the identity service remains the authority on every request. The token is
// persisted through a Store (memory, file or Redis) under a single fixed key.
//
//	mgr := session.NewManager(session.Options{Store: session.NewFileStore(dir)})
//	_ = mgr.Init(ctx)
//	if mgr.IsAdmin() {
//	    // show admin commands
//	}
package session
