// Remove duplicate index records from the DynamoDB index table, keeping the
// newest record per source. Indexing a bucket twice creates a second record
// for every object; this cleans that up.
//
// Usage:
//
//	go run ./scripts/dedupe-records --dry-run          # preview changes
//	go run ./scripts/dedupe-records                     # apply changes
//	go run ./scripts/dedupe-records --table my-table    # custom table name
//	go run ./scripts/dedupe-records --source example.com_post.txt   # one source only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/hydrator/internal/index"
)

func main() {
	tableName := flag.String("table", "hydrator-records", "DynamoDB table name")
	region := flag.String("region", "us-east-1", "AWS region")
	source := flag.String("source", "", "Only dedupe records for this object key")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := dynamodb.NewFromConfig(cfg)
	idx := index.NewDynamoIndex(client, *tableName)

	fmt.Printf("Table: %s | Source: %s | Dry run: %v\n", *tableName, orAll(*source), *dryRun)

	var items []index.RecordItem
	if *source != "" {
		items, err = idx.RecordsForSource(ctx, *source)
	} else {
		items, err = scanRecords(ctx, client, *tableName)
	}
	if err != nil {
		log.Fatalf("load records: %v", err)
	}

	var deleted, failed int
	for _, item := range index.Duplicates(items) {
		action := "DELETE"
		if *dryRun {
			action = "DRY-RUN"
		}
		fmt.Printf("[%s] %s %s\n", action, strings.TrimPrefix(item.PK, "SOURCE#"), item.SK)
		if *dryRun {
			deleted++
			continue
		}
		if err := idx.DeleteRecord(ctx, item); err != nil {
			log.Printf("ERROR %v", err)
			failed++
			continue
		}
		deleted++
	}

	fmt.Printf("\nDone. Records: %d, Deleted: %d, Failed: %d\n", len(items), deleted, failed)
	if *dryRun {
		fmt.Println("(dry run, no changes written)")
		os.Exit(0)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// scanRecords reads the keys of every record item in the table.
func scanRecords(ctx context.Context, client *dynamodb.Client, table string) ([]index.RecordItem, error) {
	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:            &table,
		FilterExpression:     aws.String("begins_with(PK, :prefix)"),
		ProjectionExpression: aws.String("PK, SK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: "SOURCE#"},
		},
	})

	var items []index.RecordItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var batch []index.RecordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func orAll(source string) string {
	if source == "" {
		return "(all)"
	}
	return source
}
