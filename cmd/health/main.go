package main

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"ecs/config"
	"ecs/internal/logging"
)

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Region  string `json:"region,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	opts, err := config.Load(ctx)
	if err != nil {
		log.Errorf("health: config load failed: %v", err)
		return respond(500, HealthResponse{
			OK:      false,
			Service: "ecs-layer",
			Error:   err.Error(),
		}), nil
	}

	return respond(200, HealthResponse{
		OK:      true,
		Service: "ecs-layer",
		Region:  opts.RegionName,
	}), nil
}

func respond(status int, body HealthResponse) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type": "application/json",
		},
		Body: string(b),
	}
}

func main() {
	logging.Init()
	lambda.Start(handler)
}
