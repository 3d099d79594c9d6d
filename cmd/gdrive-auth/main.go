// Command gdrive-auth runs the OAuth consent flow once and prints the
// refresh token the worker needs for GDRIVE_REFRESH_TOKEN.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"comfyworker/internal/config"
	"comfyworker/internal/pkg/logger"
)

const authTimeout = 3 * time.Minute

func main() {
	ctx := context.Background()
	log := logger.New(logger.Config{Level: "info", Format: "text", ServiceName: "gdrive-auth"})

	clientID := config.MustEnv("GDRIVE_CLIENT_ID")
	clientSecret := config.MustEnv("GDRIVE_CLIENT_SECRET")

	// 1) Callback local en un puerto libre
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.LogFatal("failed to open callback listener", err)
	}
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", ln.Addr().(*net.TCPAddr).Port)

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope}, // solo archivos creados por la app
		RedirectURL:  redirectURL,
	}

	state := randomState()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{
		Handler:      callbackHandler(state, codeCh, errCh),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()

	// 2) offline => refresh token; consent lo fuerza aunque ya se haya autorizado antes
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))

	fmt.Print("\nOpen this URL in your browser:\n\n")
	fmt.Println(authURL)
	log.Info("waiting for authorization", "redirect_url", redirectURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		_ = srv.Close()
		log.LogFatal("authorization failed", err)
	case <-time.After(authTimeout):
		_ = srv.Close()
		log.LogFatal("authorization timed out", fmt.Errorf("no callback within %s", authTimeout))
	}
	_ = srv.Close()

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.LogFatal("token exchange failed", err)
	}

	if strings.TrimSpace(tok.RefreshToken) == "" {
		log.Warn("no refresh_token returned; revoke the app at https://myaccount.google.com/permissions and run again")
		return
	}

	fmt.Print("\nGDRIVE_REFRESH_TOKEN:\n\n")
	fmt.Println(tok.RefreshToken)
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "invalid state", http.StatusBadRequest)
			errCh <- fmt.Errorf("invalid state")
		case q.Get("error") != "":
			http.Error(w, "auth error: "+q.Get("error"), http.StatusBadRequest)
			errCh <- fmt.Errorf("auth error: %s", q.Get("error"))
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("missing code")
		default:
			fmt.Fprintln(w, "OK. You can close this window and return to the terminal.")
			codeCh <- q.Get("code")
		}
	})
	return mux
}

func randomState() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
