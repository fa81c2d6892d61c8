package middleware

import (
	"mini-app-service/controller/respond"
	model "mini-app-service/models"

	"github.com/gin-gonic/gin"
)

const ContextDeveloper = "developer"

// DeveloperResolver lazily resolves the developer of an identity
type DeveloperResolver interface {
	EnsureDeveloper(identity string) (*model.Developer, error)
}

// RequireStaff only lets ADMIN and MODERATOR developers through
func RequireStaff(resolver DeveloperResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		dev, err := resolver.EnsureDeveloper(Identity(c))
		if err != nil {
			respond.FromError(c, err)
			c.Abort()
			return
		}
		if !dev.AdminRole.IsStaff() {
			respond.Forbidden(c, "admin role required")
			c.Abort()
			return
		}
		c.Set(ContextDeveloper, dev)
		c.Next()
	}
}

// Developer developer resolved by RequireStaff, nil otherwise
func Developer(c *gin.Context) *model.Developer {
	if v, ok := c.Get(ContextDeveloper); ok {
		if dev, ok := v.(*model.Developer); ok {
			return dev
		}
	}
	return nil
}
