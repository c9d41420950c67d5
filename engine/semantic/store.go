package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/wessley-diagnostics/engine/suggest"
)

type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore owns the Qdrant collection of common issues.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

// New connects to Qdrant's gRPC port at addr.
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a store over existing clients.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the cosine collection with dims-sized vectors if
// it does not exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection, for full rebuilds.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// UpsertIssues writes issue points and waits for them to be indexed.
func (v *VectorStore) UpsertIssues(ctx context.Context, issues []IssuePoint) error {
	if len(issues) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(issues))
	for i, is := range issues {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: is.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: is.Embedding}}},
			Payload: map[string]*pb.Value{
				keyIssueID:         stringValue(is.IssueID),
				keyTitle:           stringValue(is.Title),
				keyText:            stringValue(is.Text),
				keyMakes:           listValue(is.Makes),
				suggest.KeyCauses:  listValue(is.Causes),
				suggest.KeyActions: listValue(is.Actions),
			},
		}
	}
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: v.collection, Wait: &wait, Points: points})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(issues), err)
	}
	return nil
}

// SearchIssues returns the topK nearest issues. A non-empty vehicleMake
// keeps issues listing that make plus issues that list none.
func (v *VectorStore) SearchIssues(ctx context.Context, embedding []float32, topK int, vehicleMake string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(max(topK, 1)),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if vehicleMake != "" {
		req.Filter = &pb.Filter{Should: []*pb.Condition{fieldMatch(keyMakes, vehicleMake), isEmpty(keyMakes)}}
	}
	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}
	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		hits[i] = Hit{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			IssueID: p[keyIssueID].GetStringValue(),
			Title:   p[keyTitle].GetStringValue(),
			Makes:   stringsOf(p[keyMakes]),
			Causes:  stringsOf(p[suggest.KeyCauses]),
			Actions: stringsOf(p[suggest.KeyActions]),
		}
	}
	return hits, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func listValue(items []string) *pb.Value {
	vals := make([]*pb.Value, len(items))
	for i, s := range items {
		vals[i] = stringValue(s)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: vals}}}
}

// stringsOf reads a list payload; a bare string becomes a one-element list.
func stringsOf(v *pb.Value) []string {
	if s := v.GetStringValue(); s != "" {
		return []string{s}
	}
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func isEmpty(key string) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_IsEmpty{IsEmpty: &pb.IsEmptyCondition{Key: key}}}
}
