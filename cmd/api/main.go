package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/app"
	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/config"
)

func main() {
	cfg, err := config.Resolve("")
	if err != nil {
		panic(err)
	}
	logger := cfg.NewLogger(os.Stderr, false)

	application, err := app.NewApp(context.Background(), cfg, logger)
	if err != nil {
		panic(err)
	}
	lambda.Start(application.HandleRequest)
}
