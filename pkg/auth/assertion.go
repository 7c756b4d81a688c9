package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/corvidae/gatehouse/pkg/directory"
)

// AssertionTypeJWTBearer is the only supported client_assertion_type,
// per RFC 7523.
const AssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Common assertion errors.
var (
	ErrUnsupportedAssertionType = errors.New("unsupported client assertion type")
	ErrAssertionSubjectMismatch = errors.New("assertion subject and issuer differ")
	ErrAssertionMethodMismatch  = errors.New("client not registered for JWT assertions")
)

// AssertionVerifier verifies client JWT assertions. Symmetric assertions are
// checked against the client's shared secret; asymmetric ones against the
// client's published JWKS, fetched through an auto-refreshing cache.
type AssertionVerifier struct {
	clients    directory.ClientDirectory
	jwksClient *jwk.Cache

	// Lazy per-URL JWKS registration
	mu         sync.Mutex
	registered map[string]bool
}

// NewAssertionVerifier creates a verifier backed by the given client directory.
func NewAssertionVerifier(ctx context.Context, clients directory.ClientDirectory) (*AssertionVerifier, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}
	return &AssertionVerifier{
		clients:    clients,
		jwksClient: cache,
		registered: make(map[string]bool),
	}, nil
}

// Verify parses and verifies the assertion, returning the asserted client.
// The assertion's iss and sub must both carry the client_id, and the client's
// registered method decides the acceptable signature algorithms.
func (v *AssertionVerifier) Verify(ctx context.Context, creds AssertionCredentials) (*directory.Client, error) {
	if creds.Type != AssertionTypeJWTBearer {
		return nil, ErrUnsupportedAssertionType
	}

	clientID, err := assertionClientID(creds.Assertion)
	if err != nil {
		return nil, err
	}

	client, err := v.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("unknown assertion client %q: %w", clientID, err)
	}

	var (
		keyfunc jwt.Keyfunc
		methods []string
	)
	switch client.Method {
	case directory.MethodClientSecretJWT:
		methods = []string{"HS256", "HS384", "HS512"}
		keyfunc = func(*jwt.Token) (any, error) {
			return []byte(client.Secret), nil
		}
	case directory.MethodPrivateKeyJWT:
		methods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256"}
		keyfunc = func(token *jwt.Token) (any, error) {
			return v.keyFromJWKS(ctx, client.JWKSURI, token)
		}
	default:
		return nil, ErrAssertionMethodMismatch
	}

	_, err = jwt.Parse(creds.Assertion, keyfunc,
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("assertion verification failed: %w", err)
	}
	return client, nil
}

// assertionClientID extracts the client id from an unverified assertion.
// The signature is checked afterwards with the key belonging to this client,
// so a forged issuer cannot pass verification.
func assertionClientID(assertion string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(assertion, claims); err != nil {
		return "", fmt.Errorf("malformed assertion: %w", err)
	}
	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return "", errors.New("assertion missing issuer")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("assertion missing subject")
	}
	if issuer != subject {
		return "", ErrAssertionSubjectMismatch
	}
	return subject, nil
}

// keyFromJWKS resolves the verification key for the token from the client's
// published JWKS, registering the URL with the cache on first use.
func (v *AssertionVerifier) keyFromJWKS(ctx context.Context, jwksURI string, token *jwt.Token) (any, error) {
	if jwksURI == "" {
		return nil, errors.New("client has no registered JWKS URI")
	}
	if err := v.ensureRegistered(ctx, jwksURI); err != nil {
		return nil, err
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("assertion header missing kid")
	}

	keySet, err := v.jwksClient.Lookup(ctx, jwksURI)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup JWKS: %w", err)
	}
	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("key ID %s not found in JWKS", kid)
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("failed to export raw key: %w", err)
	}
	return rawKey, nil
}

func (v *AssertionVerifier) ensureRegistered(ctx context.Context, jwksURI string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.registered[jwksURI] {
		return nil
	}

	registrationCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := v.jwksClient.Register(registrationCtx, jwksURI); err != nil {
		return fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	v.registered[jwksURI] = true
	return nil
}
