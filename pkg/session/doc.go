// Package session opens a logged-in browser on an institutional channel.
//
// A Manager validates the working directories, takes an exclusive lock on
// the Chrome profile directory and launches the browser. If the persistent
// profile is still logged in it is reused; otherwise the login form is
// filled at a human pace and the operator solves the captcha. The returned
// Session must be closed, which stops the browser and releases the lock:
//
//	s, err := mgr.Open(ctx, session.Credentials{Username: u, Password: p})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.GotoDatabase(ctx, 3); err != nil {
//	    return err
//	}
package session
