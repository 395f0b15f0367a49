package rest

import (
	"github.com/gin-gonic/gin"
)

// SuccessResponse is the teacher's envelope shape minus the pagination
// metadata the engine doesn't need. respondJSON does not use it: 2xx
// payloads are written unwrapped.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

func respondJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func respondError(c *gin.Context, apiErr *APIError) {
	c.JSON(apiErr.HTTPStatus, apiErr)
}

func respondAPIError(c *gin.Context, err error) {
	respondError(c, TranslateError(err))
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, ErrInvalidJSON)
		return false
	}
	return true
}

func getParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if value == "" {
		respondError(c, ErrMissingParameter)
		return "", false
	}
	return value, true
}
