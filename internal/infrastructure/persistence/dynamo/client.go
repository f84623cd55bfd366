// Package dynamo implements the edge and connection stores on DynamoDB.
//
// Table layout:
//
//	interest_edges  PK likerId (S), SK edgeKey (S) = likeeId:program:category
//	connections     PK pairKey (S), GSIs participantA-index and participantB-index
//
// Participant IDs never contain ':', so a begins_with on "likeeId:" selects
// exactly the edges towards one likee.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by the stores.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config holds DynamoDB settings.
type Config struct {
	Region string

	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string

	EdgeTable       string
	ConnectionTable string
}

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		Region:          "us-east-1",
		EdgeTable:       "interest_edges",
		ConnectionTable: "connections",
	}
}

// Index names on the connections table.
const (
	ParticipantAIndex = "participantA-index"
	ParticipantBIndex = "participantB-index"
)

// NewClient builds a DynamoDB client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Ping checks that both tables are reachable.
func Ping(ctx context.Context, api API, cfg Config) error {
	for _, table := range []string{cfg.EdgeTable, cfg.ConnectionTable} {
		_, err := api.Scan(ctx, &dynamodb.ScanInput{
			TableName: aws.String(table),
			Limit:     aws.Int32(1),
		})
		if err != nil {
			return fmt.Errorf("failed to reach table '%s': %w", table, err)
		}
	}
	return nil
}

// IsConditionFailed reports whether a conditional write was rejected.
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
