package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"outreach_backend/internal/provider/repository"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
)

// callbackOrgKey is where the authenticated organization lands in the gin
// context for callback handlers.
const callbackOrgKey = "provider_org_id"

// KeyStore is the persistence surface callback authentication needs.
type KeyStore interface {
	Create(ctx context.Context, key *repository.APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*repository.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// IssueKey mints a callback credential. The returned plaintext has the form
// "<prefix>.<secret>" and is never stored.
func IssueKey(ctx context.Context, store KeyStore, orgID uuid.UUID, name string) (plaintext string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	secret := hex.EncodeToString(buf)
	prefix := secret[:8]
	secret = secret[8:]

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}

	key := &repository.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Prefix:         prefix,
		KeyHash:        hash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.Create(ctx, key); err != nil {
		return "", err
	}
	return prefix + "." + secret, nil
}

// KeyAuth authenticates provider callbacks with an X-Api-Key header.
func KeyAuth(store KeyStore, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Api-Key")
		prefix, secret, found := strings.Cut(raw, ".")
		if !found || prefix == "" || secret == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing or malformed api key", nil)
			c.Abort()
			return
		}

		key, err := store.GetByPrefix(c.Request.Context(), prefix)
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusUnauthorized, "invalid api key", nil)
			c.Abort()
			return
		}
		if err != nil {
			log.DatabaseError("api_key_lookup", err)
			httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
			c.Abort()
			return
		}

		if bcrypt.CompareHashAndPassword(key.KeyHash, []byte(secret)) != nil {
			httpkit.Error(c, http.StatusUnauthorized, "invalid api key", nil)
			c.Abort()
			return
		}

		// Best effort; an audit timestamp must not fail the callback.
		if err := store.TouchLastUsed(c.Request.Context(), key.ID); err != nil {
			log.DatabaseError("api_key_touch", err)
		}

		c.Set(callbackOrgKey, key.OrganizationID)
		c.Next()
	}
}

// CallbackOrg returns the organization authenticated by KeyAuth.
func CallbackOrg(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(callbackOrgKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
