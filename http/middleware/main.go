package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-document-gateway/http/controller"
)

type Middlewares struct {
	CORSMiddleware gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	var checker TokenChecker
	if ctrl.Config.EnvConfig.ExternalService.RemoteTokenCheck && ctrl.Infra.AuthorizationService != nil {
		checker = ctrl.Infra.AuthorizationService
	}

	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	auth := AuthMiddleware(checker, ctrl.Infra.ClassificationService, ctrl.Infra.Logger, ctrl.Config.EnvConfig)

	return &Middlewares{
		CORSMiddleware: cors,
		AuthMiddleware: auth,
	}, nil
}
