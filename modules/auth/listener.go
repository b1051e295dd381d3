package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const confirmationPage = `<html>
  <body>
    <h1>Authorization complete</h1>
    <p>You can now close this window.</p>
  </body>
</html>`

// CallbackListener is a single-use local HTTP listener bound to an
// authorization redirect URL. It consumes exactly one request on the
// redirect path, hands its query parameters to the waiter, answers with a
// small confirmation page, and releases the port.
type CallbackListener struct {
	srv  *http.Server
	ln   net.Listener
	path string

	once    sync.Once
	params  chan map[string]string
	srvErr  chan error
	closeMu sync.Mutex
	closed  bool
}

// NewCallbackListener binds a listener to the redirect URL's host, port, and
// path. It fails if the URL is not absolute or the port cannot be bound.
func NewCallbackListener(redirectURL string) (*CallbackListener, error) {
	u, err := url.Parse(redirectURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, &Error{Op: "bind callback listener", Err: fmt.Errorf("%w: redirect url %q is not an absolute url", ErrInvalidArgument, redirectURL)}
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}

	ln, err := net.Listen("tcp", host)
	if err != nil {
		return nil, &Error{Op: "bind callback listener", Err: err}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	l := &CallbackListener{
		ln:     ln,
		path:   path,
		params: make(chan map[string]string, 1),
		srvErr: make(chan error, 1),
	}
	l.srv = &http.Server{Handler: http.HandlerFunc(l.handle)}

	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.srvErr <- err
		}
	}()

	return l, nil
}

func (l *CallbackListener) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path && r.URL.Path != l.path+"/" {
		http.NotFound(w, r)
		return
	}

	consumed := false
	l.once.Do(func() {
		consumed = true
		query := r.URL.Query()
		result := make(map[string]string, len(query))
		for key := range query {
			result[key] = query.Get(key)
		}
		l.params <- result
	})
	if !consumed {
		// The one redirect was already handled.
		http.Error(w, "already handled", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, confirmationPage)
}

// WaitForRedirect blocks until the redirect arrives, the timeout elapses, or
// ctx is done. The listener is closed on every return path.
func (l *CallbackListener) WaitForRedirect(ctx context.Context, timeout time.Duration) (map[string]string, error) {
	defer l.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case params := <-l.params:
		return params, nil
	case err := <-l.srvErr:
		return nil, &Error{Op: "wait for redirect", Err: err}
	case <-timer.C:
		return nil, &Error{Op: "wait for redirect", Err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
	case <-ctx.Done():
		return nil, &Error{Op: "wait for redirect", Err: ctx.Err()}
	}
}

// Addr returns the bound address, useful when the redirect URL used port 0.
func (l *CallbackListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener and frees the port. Safe to call more than once.
func (l *CallbackListener) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
