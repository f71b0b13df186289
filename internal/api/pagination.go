package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const pageSizeDefault = 20
const pageSizeMax = 100

// GetPaginationParams calculates the offset and limit for pagination based on the provided values.
// If offset or limit are nil, default values are used. The limit is capped at a maximum value.
func GetPaginationParams(offset *int, limit *int) (int, int) {
	finalOffset := 0
	finalLimit := pageSizeDefault

	if offset != nil && *offset >= 0 {
		finalOffset = *offset
	}

	if limit != nil && *limit > 0 {
		finalLimit = min(*limit, pageSizeMax)
	}

	return finalOffset, finalLimit
}

// PaginationFromQuery reads the optional offset and limit query parameters.
func PaginationFromQuery(c *gin.Context) (int, int, error) {
	var offset, limit *int
	for name, dst := range map[string]**int{"offset": &offset, "limit": &limit} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid '%s' query parameter, must be an integer", name)
		}
		*dst = &n
	}
	finalOffset, finalLimit := GetPaginationParams(offset, limit)
	return finalOffset, finalLimit, nil
}
