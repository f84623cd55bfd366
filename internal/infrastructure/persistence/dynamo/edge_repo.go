package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/participant"
	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
)

const keySeparator = ":"

type edgeItem struct {
	LikerID   string    `dynamodbav:"likerId"`
	EdgeKey   string    `dynamodbav:"edgeKey"`
	ID        string    `dynamodbav:"id"`
	LikeeID   string    `dynamodbav:"likeeId"`
	Program   string    `dynamodbav:"program"`
	Category  string    `dynamodbav:"category"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

func sortKey(key social.EdgeKey) string {
	return strings.Join([]string{string(key.Likee), string(key.Program), string(key.Category)}, keySeparator)
}

func primaryKey(key social.EdgeKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"likerId": &types.AttributeValueMemberS{Value: string(key.Liker)},
		"edgeKey": &types.AttributeValueMemberS{Value: sortKey(key)},
	}
}

func (i edgeItem) toDomain() *social.InterestEdge {
	return &social.InterestEdge{
		ID: i.ID,
		EdgeKey: social.EdgeKey{
			Liker:    participant.ParticipantID(i.LikerID),
			Likee:    participant.ParticipantID(i.LikeeID),
			Program:  participant.Program(i.Program),
			Category: social.Category(i.Category),
		},
		CreatedAt: i.CreatedAt,
	}
}

// EdgeRepository implements social.EdgeRepository on DynamoDB.
// Uniqueness of the 4-tuple comes from an attribute_not_exists conditional put.
type EdgeRepository struct {
	api   API
	table string

	mutual snapshot[social.MutualPair]
	pairs  snapshot[social.PairKey]
}

// NewEdgeRepository creates an edge store on the given table.
func NewEdgeRepository(api API, table string) *EdgeRepository {
	return &EdgeRepository{api: api, table: table}
}

// snapshotTTL bounds how long a listing taken at offset 0 serves later pages.
const snapshotTTL = time.Minute

// snapshot holds one full-table listing so that a paged walk scans the
// table once. A request at offset 0 always takes a fresh listing.
type snapshot[T any] struct {
	mu      sync.Mutex
	items   []T
	program participant.Program
	takenAt time.Time
}

func (s *snapshot[T]) page(ctx context.Context, opts social.ListOptions, load func(context.Context) ([]T, error)) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.items == nil || s.program != opts.Program || time.Since(s.takenAt) > snapshotTTL
	if opts.Offset <= 0 || stale {
		items, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.items = items
		s.program = opts.Program
		s.takenAt = time.Now()
	}
	return append([]T{}, window(s.items, opts)...), nil
}

// Upsert inserts the edge unless its 4-tuple already exists.
func (r *EdgeRepository) Upsert(ctx context.Context, edge *social.InterestEdge) (bool, error) {
	item, err := attributevalue.MarshalMap(edgeItem{
		LikerID:   string(edge.Liker),
		EdgeKey:   sortKey(edge.Key()),
		ID:        edge.ID,
		LikeeID:   string(edge.Likee),
		Program:   string(edge.Program),
		Category:  string(edge.Category),
		CreatedAt: edge.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal edge: %w", err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(likerId) AND attribute_not_exists(edgeKey)"),
	})
	if err != nil {
		if IsConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to put edge in table '%s': %w", r.table, err)
	}
	return true, nil
}

// Delete removes the edge and reports whether it existed.
func (r *EdgeRepository) Delete(ctx context.Context, key social.EdgeKey) (bool, error) {
	out, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.table),
		Key:          primaryKey(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete edge from table '%s': %w", r.table, err)
	}
	return len(out.Attributes) > 0, nil
}

// Exists checks whether the edge is live.
func (r *EdgeRepository) Exists(ctx context.Context, key social.EdgeKey) (bool, error) {
	edge, err := r.get(ctx, key)
	if err != nil {
		return false, err
	}
	return edge != nil, nil
}

// FindReciprocal returns the reverse edge, or nil when it is absent.
func (r *EdgeRepository) FindReciprocal(ctx context.Context, key social.EdgeKey) (*social.InterestEdge, error) {
	return r.get(ctx, key.Reverse())
}

func (r *EdgeRepository) get(ctx context.Context, key social.EdgeKey) (*social.InterestEdge, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            primaryKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get edge from table '%s': %w", r.table, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item edgeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge: %w", err)
	}
	return item.toDomain(), nil
}

// CountBetween counts edges in both directions across programs.
func (r *EdgeRepository) CountBetween(ctx context.Context, a, b participant.ParticipantID) (int, error) {
	total := 0
	for _, dir := range [][2]participant.ParticipantID{{a, b}, {b, a}} {
		n, err := r.countTowards(ctx, dir[0], dir[1])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (r *EdgeRepository) countTowards(ctx context.Context, liker, likee participant.ParticipantID) (int, error) {
	p := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("likerId = :liker AND begins_with(edgeKey, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":liker":  &types.AttributeValueMemberS{Value: string(liker)},
			":prefix": &types.AttributeValueMemberS{Value: string(likee) + keySeparator},
		},
		Select:         types.SelectCount,
		ConsistentRead: aws.Bool(true),
	})

	n := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count edges in table '%s': %w", r.table, err)
		}
		n += int(page.Count)
	}
	return n, nil
}

// MutualProgramsBetween returns the programs with reciprocal edges of the same category.
func (r *EdgeRepository) MutualProgramsBetween(ctx context.Context, a, b participant.ParticipantID) ([]participant.Program, error) {
	towards := func(liker, likee participant.ParticipantID) ([]edgeItem, error) {
		return r.query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("likerId = :liker AND begins_with(edgeKey, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":liker":  &types.AttributeValueMemberS{Value: string(liker)},
				":prefix": &types.AttributeValueMemberS{Value: string(likee) + keySeparator},
			},
			ConsistentRead: aws.Bool(true),
		})
	}

	forward, err := towards(a, b)
	if err != nil {
		return nil, err
	}
	backward, err := towards(b, a)
	if err != nil {
		return nil, err
	}

	back := make(map[social.EdgeKey]bool, len(backward))
	for _, item := range backward {
		back[item.toDomain().Key()] = true
	}
	var programs []participant.Program
	for _, item := range forward {
		key := item.toDomain().Key()
		if back[key.Reverse()] {
			programs = append(programs, key.Program)
		}
	}
	return canonicalPrograms(programs), nil
}

// ListByLiker returns outgoing edges, newest first.
func (r *EdgeRepository) ListByLiker(ctx context.Context, liker participant.ParticipantID, opts social.ListOptions) ([]*social.InterestEdge, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("likerId = :liker"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":liker": &types.AttributeValueMemberS{Value: string(liker)},
		},
	}
	if opts.Program != "" {
		input.FilterExpression = aws.String("program = :program")
		input.ExpressionAttributeValues[":program"] = &types.AttributeValueMemberS{Value: string(opts.Program)}
	}

	items, err := r.query(ctx, input)
	if err != nil {
		return nil, err
	}

	edges := make([]*social.InterestEdge, 0, len(items))
	for _, item := range items {
		edges = append(edges, item.toDomain())
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return edges[i].ID > edges[j].ID
	})
	return window(edges, opts), nil
}

// ListMutualPairs returns pairs that have reciprocal edges of the same program and category.
// It scans the table once per walk and is meant for the reconciliation job only.
func (r *EdgeRepository) ListMutualPairs(ctx context.Context, opts social.ListOptions) ([]social.MutualPair, error) {
	return r.mutual.page(ctx, opts, func(ctx context.Context) ([]social.MutualPair, error) {
		return r.listMutualPairs(ctx, opts.Program)
	})
}

func (r *EdgeRepository) listMutualPairs(ctx context.Context, program participant.Program) ([]social.MutualPair, error) {
	items, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	live := make(map[social.EdgeKey]bool, len(items))
	for _, item := range items {
		live[item.toDomain().Key()] = true
	}

	programs := make(map[social.PairKey]map[participant.Program]bool)
	for key := range live {
		if key.Liker > key.Likee || !live[key.Reverse()] {
			continue
		}
		if program != "" && key.Program != program {
			continue
		}
		pk, err := key.PairKey()
		if err != nil {
			continue
		}
		if programs[pk] == nil {
			programs[pk] = make(map[participant.Program]bool)
		}
		programs[pk][key.Program] = true
	}

	keys := make([]social.PairKey, 0, len(programs))
	for pk := range programs {
		keys = append(keys, pk)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]social.MutualPair, 0, len(keys))
	for _, pk := range keys {
		pair := social.MutualPair{PairKey: pk, Programs: []participant.Program{}}
		for _, p := range participant.AllPrograms() {
			if programs[pk][p] {
				pair.Programs = append(pair.Programs, p)
			}
		}
		out = append(out, pair)
	}
	return out, nil
}

// ListPairsWithEdges returns every pair key with at least one live edge.
// Like ListMutualPairs it scans once per walk.
func (r *EdgeRepository) ListPairsWithEdges(ctx context.Context, opts social.ListOptions) ([]social.PairKey, error) {
	return r.pairs.page(ctx, opts, r.listPairsWithEdges)
}

func (r *EdgeRepository) listPairsWithEdges(ctx context.Context) ([]social.PairKey, error) {
	items, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[social.PairKey]struct{})
	for _, item := range items {
		if pk, err := item.toDomain().Key().PairKey(); err == nil {
			set[pk] = struct{}{}
		}
	}
	keys := make([]social.PairKey, 0, len(set))
	for pk := range set {
		keys = append(keys, pk)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (r *EdgeRepository) query(ctx context.Context, input *dynamodb.QueryInput) ([]edgeItem, error) {
	var out []edgeItem
	p := dynamodb.NewQueryPaginator(r.api, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query table '%s': %w", r.table, err)
		}
		var items []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func (r *EdgeRepository) scan(ctx context.Context) ([]edgeItem, error) {
	var out []edgeItem
	p := dynamodb.NewScanPaginator(r.api, &dynamodb.ScanInput{TableName: aws.String(r.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", r.table, err)
		}
		var items []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func window[T any](items []T, opts social.ListOptions) []T {
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return items[start:end]
}
