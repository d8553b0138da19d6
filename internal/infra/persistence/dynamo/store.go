// Package dynamo persists the directory into a single DynamoDB table. The
// in-memory store remains the transactional engine; each committed change set
// is collapsed per item and written with TransactWriteItems, in batches that
// are undone when a later batch fails.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultTable is used when no table name is configured.
const DefaultTable = "schoolcore"

// maxTransactItems is the DynamoDB limit for a single TransactWriteItems call.
const maxTransactItems = 100

// Client is the subset of the DynamoDB API used by the store.
type Client interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ClientConfig configures the AWS client built by NewClient.
type ClientConfig struct {
	Region   string
	Endpoint string // optional; DynamoDB Local or LocalStack
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*dynamodb.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// item is the single-table record layout. pk is "<entity>#<id>".
type item struct {
	PK        string `dynamodbav:"pk"`
	Entity    string `dynamodbav:"entity"`
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name,omitempty"`
	SchoolID  string `dynamodbav:"school_id,omitempty"`
	FirstName string `dynamodbav:"first_name,omitempty"`
	LastName  string `dynamodbav:"last_name,omitempty"`
	CollegeID string `dynamodbav:"college_id,omitempty"`
	College   string `dynamodbav:"college,omitempty"`
	CreatedAt int64  `dynamodbav:"created_at"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

func itemKey(entity domain.EntityType, id string) string {
	return string(entity) + "#" + id
}

// Store mirrors the directory into DynamoDB.
type Store struct {
	*memory.Store
	client Client
	table  string
}

// NewStore hydrates the mirror from table and returns a write-through store.
func NewStore(ctx context.Context, client Client, table string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	s := &Store{client: client, table: table}
	opts = append(opts, memory.WithCommitHook(s.commit))
	s.Store = memory.NewStore(engine, opts...)
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.ImportState(snapshot)
	return s, nil
}

// Table reports the backing table name.
func (s *Store) Table() string { return s.table }

type pending struct {
	key    string
	delete bool
	value  item
	// before is the item as it stood ahead of the change set; nil when the
	// change set created it.
	before *item
}

// collapse folds the change list to the final action per item, keeping
// first-seen order. DynamoDB rejects two operations on one item per call.
func collapse(changes []domain.Change) ([]pending, error) {
	index := make(map[string]int, len(changes))
	var out []pending
	for _, change := range changes {
		p, err := toPending(change)
		if err != nil {
			return nil, err
		}
		if i, ok := index[p.key]; ok {
			p.before = out[i].before
			out[i] = p
			continue
		}
		index[p.key] = len(out)
		out = append(out, p)
	}
	return out, nil
}

func toPending(change domain.Change) (pending, error) {
	payload := change.After
	if change.Action == domain.ActionDelete {
		payload = change.Before
	}
	it, err := toItem(change.Entity, payload)
	if err != nil {
		return pending{}, fmt.Errorf("%s %s: %w", change.Action, change.Entity, err)
	}
	p := pending{key: it.PK, delete: change.Action == domain.ActionDelete, value: it}
	if change.Action != domain.ActionCreate {
		before, err := toItem(change.Entity, change.Before)
		if err != nil {
			return pending{}, fmt.Errorf("%s %s: %w", change.Action, change.Entity, err)
		}
		p.before = &before
	}
	return p, nil
}

func toItem(entity domain.EntityType, payload any) (item, error) {
	var it item
	switch v := payload.(type) {
	case domain.School:
		it = item{ID: v.ID, Name: v.Name, CreatedAt: unix(v.CreatedAt), UpdatedAt: unix(v.UpdatedAt)}
	case domain.College:
		it = item{ID: v.ID, SchoolID: v.SchoolID, Name: v.Name, CreatedAt: unix(v.CreatedAt), UpdatedAt: unix(v.UpdatedAt)}
	case domain.Student:
		it = item{ID: v.ID, FirstName: v.FirstName, LastName: v.LastName, SchoolID: v.SchoolID, CreatedAt: unix(v.CreatedAt), UpdatedAt: unix(v.UpdatedAt)}
		if v.HasCollege() {
			it.CollegeID = *v.CollegeID
			it.College = v.College
		}
	default:
		return item{}, fmt.Errorf("unsupported payload %T", payload)
	}
	it.Entity = string(entity)
	it.PK = itemKey(entity, it.ID)
	return it, nil
}

func (s *Store) deleteWrite(key string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.table),
			Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}},
		},
	}
}

func (s *Store) putWrite(it item) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal %s: %w", it.PK, err)
	}
	return types.TransactWriteItem{Put: &types.Put{TableName: aws.String(s.table), Item: av}}, nil
}

// forward and undo build the writes that apply a pending item and that
// return it to its pre-transaction image.
func (s *Store) forward(p pending) (types.TransactWriteItem, error) {
	if p.delete {
		return s.deleteWrite(p.key), nil
	}
	return s.putWrite(p.value)
}

func (s *Store) undo(p pending) (types.TransactWriteItem, error) {
	if p.before == nil {
		return s.deleteWrite(p.key), nil
	}
	return s.putWrite(*p.before)
}

func (s *Store) writeBatches(ctx context.Context, writes []types.TransactWriteItem) (int, error) {
	for start := 0; start < len(writes); start += maxTransactItems {
		end := min(start+maxTransactItems, len(writes))
		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: writes[start:end],
		}); err != nil {
			return start, err
		}
	}
	return len(writes), nil
}

// commit writes the change set in batches of maxTransactItems. When a batch
// fails, the batches already applied are written back to their
// pre-transaction images so the table matches the unpublished mirror.
func (s *Store) commit(ctx context.Context, changes []domain.Change) error {
	items, err := collapse(changes)
	if err != nil {
		return domain.StorageUnavailable("prepare dynamodb writes", err)
	}
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, p := range items {
		w, err := s.forward(p)
		if err != nil {
			return domain.StorageUnavailable("prepare dynamodb writes", err)
		}
		writes = append(writes, w)
	}
	applied, err := s.writeBatches(ctx, writes)
	if err == nil {
		return nil
	}
	if applied == 0 {
		return domain.StorageUnavailable("transact write items", err)
	}
	undo := make([]types.TransactWriteItem, 0, applied)
	for _, p := range items[:applied] {
		w, uerr := s.undo(p)
		if uerr != nil {
			return domain.StorageUnavailable("transact write items", errors.Join(err, fmt.Errorf("rollback incomplete: %w", uerr)))
		}
		undo = append(undo, w)
	}
	// The rollback runs even when ctx is already cancelled.
	if _, uerr := s.writeBatches(context.WithoutCancel(ctx), undo); uerr != nil {
		return domain.StorageUnavailable("transact write items", errors.Join(err, fmt.Errorf("rollback incomplete: %w", uerr)))
	}
	return domain.StorageUnavailable("transact write items", err)
}

func (s *Store) load(ctx context.Context) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{Version: domain.SnapshotVersion}
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return snapshot, domain.StorageUnavailable("scan "+s.table, err)
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return snapshot, fmt.Errorf("decode items: %w", err)
		}
		for _, it := range items {
			created, updated := fromUnix(it.CreatedAt), fromUnix(it.UpdatedAt)
			switch domain.EntityType(it.Entity) {
			case domain.EntitySchool:
				snapshot.Schools = append(snapshot.Schools, domain.School{
					Base: domain.Base{ID: it.ID, CreatedAt: created, UpdatedAt: updated},
					Name: it.Name,
				})
			case domain.EntityCollege:
				snapshot.Colleges = append(snapshot.Colleges, domain.College{
					Base:     domain.Base{ID: it.ID, CreatedAt: created, UpdatedAt: updated},
					SchoolID: it.SchoolID,
					Name:     it.Name,
				})
			case domain.EntityStudent:
				student := domain.Student{
					Base:      domain.Base{ID: it.ID, CreatedAt: created, UpdatedAt: updated},
					FirstName: it.FirstName,
					LastName:  it.LastName,
					SchoolID:  it.SchoolID,
				}
				if it.CollegeID != "" {
					id := it.CollegeID
					student.CollegeID = &id
					student.College = it.College
				}
				snapshot.Students = append(snapshot.Students, student)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return snapshot, nil
}

func unix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
