package report

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// DynamoDBPublisher stores one item per problem. The table is keyed by run
// (partition key "run", string) and sequence number (sort key "seq", number).
type DynamoDBPublisher struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// NewDynamoDBPublisher loads the AWS configuration and checks that the table exists.
func NewDynamoDBPublisher(ctx context.Context, region, tableName, endpoint, accessKeyID, secretAccessKey string) (*DynamoDBPublisher, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	describeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(describeCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	log.Printf("[DYNAMODB] Publishing problems to table %s in %s", tableName, region)
	return &DynamoDBPublisher{client: client, tableName: tableName}, nil
}

// problemItem maps p onto DynamoDB attributes.
func problemItem(p Problem) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"run":     &types.AttributeValueMemberS{Value: p.Run},
		"seq":     &types.AttributeValueMemberN{Value: strconv.Itoa(p.Seq)},
		"subject": &types.AttributeValueMemberS{Value: p.Subject},
		"reason":  &types.AttributeValueMemberS{Value: p.Reason},
		"time":    &types.AttributeValueMemberS{Value: p.Time.Format(time.RFC3339Nano)},
	}
}

// Publish puts p as a new item.
func (d *DynamoDBPublisher) Publish(ctx context.Context, p Problem) error {
	if d.closed {
		return ErrPublisherClosed
	}
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      problemItem(p),
	})
	if err != nil {
		return fmt.Errorf("failed to put problem %d into %s: %w", p.Seq, d.tableName, err)
	}
	return nil
}

func (d *DynamoDBPublisher) Type() string { return "dynamodb" }

// Close marks the publisher closed. The SDK client holds no resources to release.
func (d *DynamoDBPublisher) Close() error {
	d.closed = true
	return nil
}

// DynamoDBPublisherFactory creates DynamoDB publishers.
type DynamoDBPublisherFactory struct{}

func (f *DynamoDBPublisherFactory) Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error) {
	c := config.DynamoDB
	return NewDynamoDBPublisher(ctx, c.Region, c.TableName, c.Endpoint, c.AccessKeyID, c.SecretAccessKey)
}

func (f *DynamoDBPublisherFactory) Type() string { return "dynamodb" }

// Validate validates the DynamoDB section of a backend entry.
func (f *DynamoDBPublisherFactory) Validate(config registry.InternalBackendConfig) error {
	c := config.DynamoDB
	if c.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if c.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

func init() {
	register(&DynamoDBPublisherFactory{})
}
