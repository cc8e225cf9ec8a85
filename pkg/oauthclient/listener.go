package oauthclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// CallbackResult is what the loopback listener hands back once the
// authorization server redirects the user's browser to it.
type CallbackResult struct {
	Code  string
	State string
	Error string
}

// DefaultCallbackPort is the loopback port mcpmuxd tries first so the
// redirect URI stays stable across restarts — OAuth providers that
// validate the redirect_uri exactly would otherwise force a fresh DCR on
// every restart.
const DefaultCallbackPort = 45819

// LoopbackListener is a short-lived HTTP server on 127.0.0.1 that receives
// exactly one OAuth redirect at /oauth2redirect, then shuts down, replacing
// the teacher's hardcoded https://mcp.docker.com/oauth/callback proxy
// redirect.
type LoopbackListener struct {
	listener net.Listener
	server   *http.Server
	results  chan CallbackResult
}

// NewLoopbackListener binds preferredPort on 127.0.0.1 if it's free,
// otherwise falls back to a dynamic port (preferredPort == 0 always uses a
// dynamic port). Port() reports which port was actually bound so the
// caller can persist it for next time.
func NewLoopbackListener(preferredPort int) (*LoopbackListener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferredPort))
	if err != nil {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("oauthclient: bind loopback listener: %w", err)
		}
	}

	l := &LoopbackListener{
		listener: ln,
		results:  make(chan CallbackResult, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2redirect", l.handleCallback)
	l.server = &http.Server{Handler: mux}
	go func() {
		_ = l.server.Serve(ln)
	}()
	return l, nil
}

// RedirectURI is the http://127.0.0.1:<port>/oauth2redirect URI to hand to
// DCR and the authorization request.
func (l *LoopbackListener) RedirectURI() string {
	return fmt.Sprintf("http://%s/oauth2redirect", l.listener.Addr().String())
}

// Port reports the actually-bound port, to persist for next time.
func (l *LoopbackListener) Port() int {
	return l.listener.Addr().(*net.TCPAddr).Port
}

func (l *LoopbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result := CallbackResult{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.Error != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><h3>Authorization failed: %s</h3>You may close this window.</body></html>", result.Error)
	} else {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "<html><body><h3>Authorization complete</h3>You may close this window.</body></html>")
	}

	select {
	case l.results <- result:
	default:
	}
}

// Wait blocks until the callback fires or ctx is done, then shuts the
// listener down.
func (l *LoopbackListener) Wait(ctx context.Context) (CallbackResult, error) {
	defer l.Close()
	select {
	case result := <-l.results:
		return result, nil
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

// Close shuts the listener down without waiting for a callback.
func (l *LoopbackListener) Close() error {
	return l.server.Close()
}
