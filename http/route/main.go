package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-document-gateway/http/controller"
	middlewares "github.com/tnqbao/gau-document-gateway/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)
	r.GET("/healthz", ctrl.Healthz)

	apiRoutes := r.Group("/api/v1/documents")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		citizenRoutes := apiRoutes.Group("/citizens/:citizen_id")
		{
			citizenRoutes.POST("/documents", ctrl.UploadDocument)
			citizenRoutes.GET("/documents", ctrl.ListCitizenDocuments)
		}

		objectRoutes := apiRoutes.Group("/objects")
		{
			objectRoutes.GET("/*path", ctrl.DownloadDocument)
			objectRoutes.PUT("/*path", ctrl.UpdateDocument)
			objectRoutes.DELETE("/*path", ctrl.DeleteDocument)
		}

		metadataRoutes := apiRoutes.Group("/metadata")
		{
			metadataRoutes.GET("", ctrl.ListAllMetadata)
			metadataRoutes.GET("/owners/:owner_id", ctrl.ListOwnerMetadata)
			metadataRoutes.POST("/:id/sign", ctrl.SignDocument)
		}

		apiRoutes.POST("/signed-urls", ctrl.GenerateSignedURLs)
		apiRoutes.POST("/copy", ctrl.CopyDocuments)
	}
	return r
}
