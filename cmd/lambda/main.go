package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"contact-service/infrastructure/config"
	"contact-service/infrastructure/di"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the request pipeline for API Gateway v2
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart = true
)

// init runs during cold start
func init() {
	coldStartTime := time.Now()
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The execution environment is frozen between invocations, so the
	// store connection is kept for the lifetime of the sandbox
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiLambda = chiadapter.NewV2(container.Router.Mux())

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if coldStart {
		coldStart = false
		container.Logger.Info("First invocation after cold start",
			zap.String("request_id", req.RequestContext.RequestID))
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	// Spans cannot wait for the next timer tick: the sandbox may freeze
	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if flushErr := container.Telemetry.ForceFlush(flushCtx); flushErr != nil {
		container.Logger.Warn("Telemetry flush failed", zap.Error(flushErr))
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
