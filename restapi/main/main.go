// Command main serves the replication REST API.
package main

import (
	"context"
	"flag"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/restapi"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "listen address")
	flag.Parse()
	coverage.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Simple closure for header token verification.
	verifyHeaderToken := func(realHandler gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			if verify(c) {
				realHandler(c)
			}
		}
	}

	jobs := restapi.NewJobs(ctx)
	router, err := restapi.NewRouter(jobs, verifyHeaderToken)
	if err != nil {
		log.Error("building router failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warn("server shutdown failed", "error", err)
		}
	}()
	log.Info("serving replication API", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	jobs.Wait()
}

var toValidate = map[string]string{
	"aud": "api://default",
	"cid": os.Getenv("OKTA_CLIENT_ID"),
}

// Verify the bearer token in header.
func verify(c *gin.Context) bool {
	// Allow easy debugging on dev, and running without Okta when no domain is configured.
	if os.Getenv("COVERAGE_ENV") == "DEV" || os.Getenv("OKTA_DOMAIN") == "" {
		return true
	}

	token := c.Request.Header.Get("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	token = strings.TrimPrefix(token, "Bearer ")

	// Allow easy QA, bypass Okta based OAuth2 token verification w/ simple token equality check.
	if os.Getenv("COVERAGE_ENV") == "QA" {
		if qaToken := os.Getenv("COVERAGE_QA_TOKEN"); qaToken != "" && token == qaToken {
			return true
		}
	}

	verifierSetup := jwtverifier.JwtVerifier{
		Issuer:           "https://" + os.Getenv("OKTA_DOMAIN") + "/oauth2/default",
		ClaimsToValidate: toValidate,
	}
	verifier := verifierSetup.New()
	if _, err := verifier.VerifyAccessToken(token); err != nil {
		log.Warn("token verification failed", "error", err)
		c.String(http.StatusForbidden, err.Error())
		return false
	}
	return true
}
