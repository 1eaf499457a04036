package controller

import (
	"mime"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-document-gateway/identity"
	"github.com/tnqbao/gau-document-gateway/service"
)

// IdentityKey is the gin context key holding the request's *identity.Context.
const IdentityKey = "identity"

// callerFrom returns the identity placed by the auth middleware, or nil.
func callerFrom(c *gin.Context) *identity.Context {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(*identity.Context); ok {
			return id
		}
	}
	if id, ok := identity.FromContext(c.Request.Context()); ok {
		return id
	}
	return nil
}

// parsePage reads limit and offset. Missing values are left at zero so the
// service applies its defaults.
func parsePage(c *gin.Context) (service.Page, bool) {
	var page service.Page
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return page, false
		}
		page.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return page, false
		}
		page.Offset = offset
	}
	return page, true
}

// detectContentType prefers the part header, then the file extension.
func detectContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(path.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
