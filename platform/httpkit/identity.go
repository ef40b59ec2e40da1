package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated operator behind a request.
type Identity interface {
	OperatorID() uuid.UUID
	Email() string
	IsAuthenticated() bool
}

type identity struct {
	operatorID    uuid.UUID
	email         string
	authenticated bool
}

func (i *identity) OperatorID() uuid.UUID { return i.operatorID }
func (i *identity) Email() string         { return i.email }
func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if operator info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextOperatorIDKey)
	if !ok {
		return &identity{}
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}
	email := c.GetString(ContextOperatorEmailKey)
	return &identity{operatorID: id, email: email, authenticated: true}
}

// MustGetIdentity aborts with 401 and returns nil when unauthenticated.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
