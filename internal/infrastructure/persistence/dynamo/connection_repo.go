package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

type connectionItem struct {
	PairKey      string    `dynamodbav:"pairKey"`
	ParticipantA string    `dynamodbav:"participantA"`
	ParticipantB string    `dynamodbav:"participantB"`
	Report       string    `dynamodbav:"report"`
	Programs     []string  `dynamodbav:"programs,stringset,omitempty"`
	CreatedAt    time.Time `dynamodbav:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updatedAt"`
}

func (i connectionItem) toDomain() (*social.Connection, error) {
	c := &social.Connection{
		PairKey:      social.PairKey(i.PairKey),
		ParticipantA: participant.ParticipantID(i.ParticipantA),
		ParticipantB: participant.ParticipantID(i.ParticipantB),
		Report:       social.EmptyReport(),
		Programs:     canonicalPrograms(i.Programs),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
	if i.Report != "" {
		if err := json.Unmarshal([]byte(i.Report), &c.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		c.Report = c.Report.Clone()
	}
	return c, nil
}

// ConnectionRepository implements social.ConnectionRepository on DynamoDB.
type ConnectionRepository struct {
	api   API
	table string
}

// NewConnectionRepository creates a connection store on the given table.
func NewConnectionRepository(api API, table string) *ConnectionRepository {
	return &ConnectionRepository{api: api, table: table}
}

func pairKeyAttr(key social.PairKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pairKey": &types.AttributeValueMemberS{Value: string(key)},
	}
}

// Upsert writes the connection by pair key. createdAt is only set on the
// first write, and programs are added to the stored string set.
func (r *ConnectionRepository) Upsert(ctx context.Context, c *social.Connection) (bool, error) {
	report, err := json.Marshal(c.Report)
	if err != nil {
		return false, fmt.Errorf("failed to marshal report: %w", err)
	}

	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":a":         string(c.ParticipantA),
		":b":         string(c.ParticipantB),
		":report":    string(report),
		":createdAt": c.CreatedAt,
		":updatedAt": c.UpdatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal connection: %w", err)
	}

	expr := "SET participantA = :a, participantB = :b, report = :report, " +
		"updatedAt = :updatedAt, createdAt = if_not_exists(createdAt, :createdAt)"
	// An empty string set is not a valid attribute value.
	if programs := programStrings(c.Programs); len(programs) > 0 {
		expr += " ADD programs :programs"
		values[":programs"] = &types.AttributeValueMemberSS{Value: programs}
	}

	out, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       pairKeyAttr(c.PairKey),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert connection in table '%s': %w", r.table, err)
	}
	return len(out.Attributes) == 0, nil
}

// SetPrograms overwrites the programs of an existing connection.
func (r *ConnectionRepository) SetPrograms(ctx context.Context, key social.PairKey, programs []participant.Program) (bool, error) {
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	expr := "SET updatedAt = :updatedAt"
	if set := programStrings(programs); len(set) > 0 {
		expr += ", programs = :programs"
		values[":programs"] = &types.AttributeValueMemberSS{Value: set}
	} else {
		expr += " REMOVE programs"
	}

	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       pairKeyAttr(key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(pairKey)"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if IsConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to set programs in table '%s': %w", r.table, err)
	}
	return true, nil
}

// Remove deletes the connection if present.
func (r *ConnectionRepository) Remove(ctx context.Context, key social.PairKey) (bool, error) {
	out, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.table),
		Key:          pairKeyAttr(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete connection from table '%s': %w", r.table, err)
	}
	return len(out.Attributes) > 0, nil
}

// Find returns the connection or social.ErrConnectionNotFound.
func (r *ConnectionRepository) Find(ctx context.Context, key social.PairKey) (*social.Connection, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            pairKeyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection from table '%s': %w", r.table, err)
	}
	if len(out.Item) == 0 {
		return nil, social.ErrConnectionNotFound
	}

	var item connectionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return item.toDomain()
}

// ListForParticipant returns the participant's connections, newest first.
func (r *ConnectionRepository) ListForParticipant(ctx context.Context, id participant.ParticipantID) ([]*social.Connection, error) {
	var out []*social.Connection
	for _, idx := range []struct{ index, attr string }{
		{ParticipantAIndex, "participantA"},
		{ParticipantBIndex, "participantB"},
	} {
		p := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
			TableName:                aws.String(r.table),
			IndexName:                aws.String(idx.index),
			KeyConditionExpression:   aws.String("#p = :id"),
			ExpressionAttributeNames: map[string]string{"#p": idx.attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": &types.AttributeValueMemberS{Value: string(id)},
			},
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to query index '%s': %w", idx.index, err)
			}
			var items []connectionItem
			if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
				return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
			}
			for _, item := range items {
				c, err := item.toDomain()
				if err != nil {
					return nil, err
				}
				out = append(out, c)
			}
		}
	}

	if out == nil {
		out = []*social.Connection{}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PairKey < out[j].PairKey
	})
	return out, nil
}

// ListPairKeys returns every connection key in order.
func (r *ConnectionRepository) ListPairKeys(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	var keys []social.PairKey
	p := dynamodb.NewScanPaginator(r.api, &dynamodb.ScanInput{
		TableName:            aws.String(r.table),
		ProjectionExpression: aws.String("pairKey"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", r.table, err)
		}
		for _, item := range page.Items {
			if v, ok := item["pairKey"].(*types.AttributeValueMemberS); ok {
				keys = append(keys, social.PairKey(v.Value))
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if keys == nil {
		keys = []social.PairKey{}
	}
	return window(keys, opts), nil
}

func programStrings(programs []participant.Program) []string {
	out := make([]string, 0, len(programs))
	for _, p := range canonicalPrograms(programs) {
		out = append(out, string(p))
	}
	return out
}

// canonicalPrograms drops duplicates and unknown values and orders the rest
// canonically; string sets come back unordered.
func canonicalPrograms[T ~string](values []T) []participant.Program {
	seen := make(map[participant.Program]bool, len(values))
	for _, v := range values {
		seen[participant.Program(v)] = true
	}
	out := make([]participant.Program, 0, len(seen))
	for _, p := range participant.AllPrograms() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
