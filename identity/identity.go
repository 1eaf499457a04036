// Package identity holds the per-request caller context decoded from a verified token.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/tnqbao/gau-document-gateway/entity"
)

// ErrClassificationUnavailable is returned when the classification service cannot
// confirm the caller's class.
var ErrClassificationUnavailable = errors.New("classification service unavailable")

// Classifier resolves the external user class of an identity.
type Classifier interface {
	Classify(ctx context.Context, userID, credential string) (entity.Classification, error)
}

// Context is the typed identity of one request. Classification is fetched at most
// once per Context.
type Context struct {
	UserID string
	Claims map[string]any

	credential string
	classifier Classifier

	once           sync.Once
	classification entity.Classification
	classifyErr    error
}

func New(userID string, claims map[string]any, credential string, classifier Classifier) *Context {
	return &Context{
		UserID:     userID,
		Claims:     claims,
		credential: credential,
		classifier: classifier,
	}
}

// Classification returns the memoized caller classification. Any failure of the
// underlying service is reported as ErrClassificationUnavailable.
func (c *Context) Classification(ctx context.Context) (entity.Classification, error) {
	c.once.Do(func() {
		if c.classifier == nil {
			c.classifyErr = ErrClassificationUnavailable
			return
		}
		class, err := c.classifier.Classify(ctx, c.UserID, c.credential)
		if err != nil {
			if errors.Is(err, ErrClassificationUnavailable) {
				c.classifyErr = err
			} else {
				c.classifyErr = errors.Join(ErrClassificationUnavailable, err)
			}
			return
		}
		c.classification = class
	})
	return c.classification, c.classifyErr
}

// Permission returns the optional "permission" claim.
func (c *Context) Permission() string {
	if c.Claims == nil {
		return ""
	}
	permission, _ := c.Claims["permission"].(string)
	return permission
}

type contextKey struct{}

func WithContext(ctx context.Context, id *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Context, bool) {
	id, ok := ctx.Value(contextKey{}).(*Context)
	return id, ok && id != nil
}
