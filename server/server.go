package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	contextKey "github.com/jhaldar/sprout/server/context_key"
)

// jwtMiddleware is a middleware function that performs JWT validation.
//
// It reads the JWT from the Authorization header of the HTTP request. If a
// JWT is present, it verifies the token's signature and checks if it has
// expired. If the JWT is valid, the function injects the account's ID
// extracted from the JWT into the request's context under
// contextKey.UserIDKey.
//
// If the JWT has expired but the claims can still be extracted, the function
// also injects the account's ID into the request's context. In case of any
// error during the JWT parsing, the function injects the error into the
// request's context under contextKey.JwtErrorKey.
//
// The function does not stop the HTTP request processing and always calls
// the next http.Handler regardless of whether a JWT was present and valid,
// or any error occurred. Thus, it's up to the next handlers to interpret the
// data in the request's context and react accordingly.
func jwtMiddleware(signingKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(signingKey), nil
				})
				if err != nil {
					log.Println("Error occurred while parsing JWT token:", err)
					if err, ok := err.(*jwt.ValidationError); ok && err.Errors == jwt.ValidationErrorExpired {
						if claims, ok := token.Claims.(jwt.MapClaims); ok {
							ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
							r = r.WithContext(ctx)
						}
					} else {
						ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
						r = r.WithContext(ctx)
					}
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware is a middleware function that recovers from panics and
// provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// newRouter builds the route table and wraps it with the recovery and JWT
// middleware.
func newRouter(signingKey string, api *API) http.Handler {
	r := mux.NewRouter()

	// Auth endpoints are open; everything else reads the account ID that
	// jwtMiddleware puts in the request context.
	r.HandleFunc("/auth/signup", api.SignUp).Methods("POST")
	r.HandleFunc("/auth/signin", api.SignIn).Methods("POST")
	r.HandleFunc("/auth/refresh", api.Refresh).Methods("POST")
	r.HandleFunc("/auth/account", api.UpdateAccount).Methods("PUT")

	r.HandleFunc("/profile", api.GetProfile).Methods("GET")
	r.HandleFunc("/profile/children", api.AddChild).Methods("POST")
	r.HandleFunc("/profile/children/{childID}", api.RenameChild).Methods("PUT")
	r.HandleFunc("/profile/children/{childID}", api.RemoveChild).Methods("DELETE")
	r.HandleFunc("/profile/behaviors", api.AddBehavior).Methods("POST")
	r.HandleFunc("/profile/behaviors/{behaviorID}", api.SetBehaviorEnabled).Methods("PUT")

	r.HandleFunc("/points", api.SetPoint).Methods("POST")
	r.HandleFunc("/report", api.GetReport).Methods("GET")
	r.HandleFunc("/report/export", api.ExportReport).Methods("GET")

	return recoveryMiddleware(jwtMiddleware(signingKey, r))
}

// Start initializes and starts the REST server. The function requires a
// serverURL (the URL where the server must be deployed), the JWT signing
// key, and the wired API.
func Start(serverURL, signingKey string, api *API) {
	routed := newRouter(signingKey, api)

	// Apply the CORS middleware to the router
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(routed)

	// Apply the logging middleware
	loggingRouter := handlers.LoggingHandler(os.Stdout, corsRouter)

	u, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}

	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}
