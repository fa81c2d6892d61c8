package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageParams parse cursor/size query parameters
func pageParams(c *gin.Context) (int64, int) {
	cursor, _ := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))

	if cursor < 0 {
		cursor = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return cursor, size
}

// URLRequest request carrying an app url
type URLRequest struct {
	URL string `json:"url" binding:"required" example:"https://x.example"`
}

// RejectRequest rejection request
type RejectRequest struct {
	URL    string `json:"url" binding:"required" example:"https://x.example"`
	Reason string `json:"reason" binding:"required" example:"duplicate listing"`
}

// DomainRequest domain challenge request
type DomainRequest struct {
	Domain string `json:"domain" binding:"required" example:"x.example"`
}

// RoleRequest role grant request
type RoleRequest struct {
	Role string `json:"role" example:"MODERATOR"`
}
