package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// RecordItem is the DynamoDB item for an indexed record. Records for one
// source share a partition; GSI1 lists a class newest first.
type RecordItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	GSI1PK    string `dynamodbav:"GSI1PK"`
	GSI1SK    string `dynamodbav:"GSI1SK"`
	RecordID  string `dynamodbav:"recordId"`
	Class     string `dynamodbav:"class"`
	Source    string `dynamodbav:"source"`
	Content   string `dynamodbav:"content"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// DynamoIndex stores records in a DynamoDB table.
type DynamoIndex struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoIndex creates a DynamoDB-backed index.
func NewDynamoIndex(client *dynamodb.Client, tableName string) *DynamoIndex {
	return &DynamoIndex{client: client, tableName: tableName}
}

func (d *DynamoIndex) CreateRecord(ctx context.Context, className string, rec Record) (string, error) {
	id, err := NewRecordID()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	item := RecordItem{
		PK:        "SOURCE#" + rec.Source,
		SK:        "RECORD#" + id,
		GSI1PK:    "CLASS#" + className,
		GSI1SK:    now + "#" + id,
		RecordID:  id,
		Class:     className,
		Source:    rec.Source,
		Content:   rec.Content,
		CreatedAt: now,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", fmt.Errorf("marshal record item: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		return "", fmt.Errorf("put record item: %w", err)
	}
	return id, nil
}

// RecordsForSource returns every record stored for source.
func (d *DynamoIndex) RecordsForSource(ctx context.Context, source string) ([]RecordItem, error) {
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              &d.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SOURCE#" + source},
		},
	})

	var items []RecordItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query records for %s: %w", source, err)
		}
		var batch []RecordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

// DeleteRecord removes a single record item.
func (d *DynamoIndex) DeleteRecord(ctx context.Context, item RecordItem) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
	})
	if err != nil {
		return fmt.Errorf("delete record %s %s: %w", item.PK, item.SK, err)
	}
	return nil
}

// Duplicates returns every record except the newest one per source, in input
// order. Record IDs are ULIDs, so the lexically largest SK is the newest.
func Duplicates(items []RecordItem) []RecordItem {
	newest := make(map[string]string)
	for _, it := range items {
		if !strings.HasPrefix(it.SK, "RECORD#") {
			continue
		}
		if it.SK > newest[it.PK] {
			newest[it.PK] = it.SK
		}
	}

	var dups []RecordItem
	for _, it := range items {
		if keep, ok := newest[it.PK]; ok && strings.HasPrefix(it.SK, "RECORD#") && it.SK != keep {
			dups = append(dups, it)
		}
	}
	return dups
}
