package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// List is the envelope for every collection endpoint.
type List[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created answers a successful POST that made a new resource.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// Items writes items as a List. A nil slice renders as [] rather than null.
func Items[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	OK(c, List[T]{Items: items, Count: len(items)})
}
