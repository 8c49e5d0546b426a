// cmd/converter/main.go
package main

import (
	"log"
	"os"

	"fiscal-converter-service/internal/api/handlers"
	"fiscal-converter-service/internal/api/responses"
	"fiscal-converter-service/internal/core/cnpj"
	"fiscal-converter-service/internal/core/converter"

	"github.com/gin-gonic/gin"
)

func main() {
	responses.InitLogger()

	converterService := converter.NewService(responses.Logger())
	cnpjClient := cnpj.NewClient()
	converterHandler := handlers.NewConverterHandler(converterService, cnpjClient)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/convert", converterHandler.HandleConvert)
		apiV1.POST("/validate", converterHandler.HandleValidate)
		apiV1.POST("/headers", converterHandler.HandleHeaders)
		apiV1.GET("/cnpj/:cnpj", converterHandler.HandleCnpjLookup)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "fiscal-converter-service"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}
	log.Printf("🚀 Fiscal Converter Service iniciado e escutando na porta %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Falha ao iniciar o servidor de conversão: ", err)
	}
}
