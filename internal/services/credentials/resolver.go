package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"venue-booking-backend/internal/config"
	"venue-booking-backend/internal/models"
)

// ConfigurationError aborts a run before any external call is made.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Store is the credential lookup the resolver needs. A missing tenant row is
// (nil, nil), not an error.
type Store interface {
	GetByTenantID(ctx context.Context, tenantID string) (*models.TenantCredential, error)
}

// Resolver picks the access credential for a tenant: the tenant's own token
// when one is stored, the platform default otherwise.
type Resolver struct {
	store        Store
	defaultToken string
	logger       *logrus.Logger
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:        store,
		defaultToken: strings.TrimSpace(os.Getenv("MP_ACCESS_TOKEN")),
		logger:       config.GetLogger(),
	}
}

// NewResolverWithDefault is for tests.
func NewResolverWithDefault(store Store, defaultToken string) *Resolver {
	return &Resolver{store: store, defaultToken: defaultToken, logger: config.GetLogger()}
}

// Resolve returns the credential for tenantID. A tenant that has not
// connected their own account is not an error; only a missing platform
// default is. Store failures fall back to the default so one unreachable
// tenant record cannot abort a whole run.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return r.platformDefault()
	}

	cred, err := r.store.GetByTenantID(ctx, tenantID)
	if err != nil {
		config.LogError(r.logger, "credentials", "Resolve", "tenant credential lookup failed, falling back to default",
			map[string]string{"tenantId": tenantID}, err)
		return r.platformDefault()
	}
	if cred != nil && strings.TrimSpace(cred.AccessToken) != "" {
		return cred.AccessToken, nil
	}
	return r.platformDefault()
}

func (r *Resolver) platformDefault() (string, error) {
	if r.defaultToken == "" {
		return "", &ConfigurationError{Reason: "no platform default credential configured (MP_ACCESS_TOKEN)"}
	}
	return r.defaultToken, nil
}
